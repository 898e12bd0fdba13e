package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/soyeahso/supportline/internal/config"
	"github.com/soyeahso/supportline/internal/domain"
	"github.com/soyeahso/supportline/internal/failover"
	"github.com/soyeahso/supportline/internal/support"
	"github.com/soyeahso/supportline/internal/widget"
	"github.com/spf13/cobra"
)

const chatHelp = `Commands:
  /go <path>                     navigate to a page
  /login <id> <name> <email> [role]
  /logout
  /open [inquiry]                open the support panel
  /close                         close the panel
  /reconnect                     retry the primary channel
  /dismiss                       don't show the widget again
  /undismiss                     clear "don't show again"
  /status                        show widget state
  /quit
Anything else is sent as a chat message.`

func newChatCmd() *cobra.Command {
	var (
		page      string
		noBrowser bool
		ephemeral bool
	)

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Run the support widget interactively in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadValidConfig()
			if err != nil {
				return err
			}

			dbPath := ":memory:"
			if !ephemeral {
				if err := paths.EnsureDirs(); err != nil {
					return err
				}
				dbPath = paths.Database
			}

			out := cmd.OutOrStdout()
			var opener widget.Opener = widget.BrowserOpener{}
			if noBrowser {
				opener = widget.PrintOpener{W: out}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			st, err := buildStack(ctx, cfg, dbPath, opener, log)
			if err != nil {
				return err
			}
			defer st.Close()

			sess := newChatSession(st.widget, st, out)
			sess.run(ctx, "/go "+page)
			fmt.Fprintln(out, chatHelp)

			go sess.watch(ctx, 200*time.Millisecond)
			return sess.loop(ctx, cmd.InOrStdin())
		},
	}

	cmd.Flags().StringVar(&page, "page", "/", "page the visitor starts on")
	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the deep link instead of opening a browser")
	cmd.Flags().BoolVar(&ephemeral, "ephemeral", false, "keep the journal and dismissals in memory")
	return cmd
}

func loadValidConfig() (config.Config, error) {
	cfg, err := config.Load(paths.Config)
	if err != nil {
		return cfg, err
	}
	if issues := config.Validate(&cfg); len(issues) > 0 {
		for _, issue := range issues {
			log.Error().Str("path", issue.Path).Msg(issue.Message)
		}
		return cfg, fmt.Errorf("config validation failed with %d issue(s)", len(issues))
	}
	return cfg, nil
}

// chatSession drives a support widget from terminal input.
type chatSession struct {
	widget *support.Widget
	stack  *stack
	out    io.Writer

	mu        sync.Mutex
	printed   map[string]bool
	status    domain.Status
	announced bool
}

func newChatSession(w *support.Widget, st *stack, out io.Writer) *chatSession {
	return &chatSession{widget: w, stack: st, out: out, printed: make(map[string]bool)}
}

func (s *chatSession) loop(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok || s.run(ctx, line) {
				return nil
			}
		}
	}
}

// run executes one input line and reports whether the session should end.
func (s *chatSession) run(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	if !strings.HasPrefix(line, "/") {
		if _, err := s.widget.Send(line); err != nil {
			s.printf("! %v\n", err)
		}
		s.flush()
		return false
	}

	fields := strings.Fields(line)
	var err error
	switch fields[0] {
	case "/quit", "/exit":
		return true
	case "/help":
		fmt.Fprintln(s.out, chatHelp)
	case "/go":
		if len(fields) < 2 {
			err = errors.New("usage: /go <path>")
			break
		}
		visible := s.widget.Navigate(ctx, fields[1])
		s.printf("on %s, widget %s\n", s.widget.Page().Path, shownOrHidden(visible))
	case "/login":
		if len(fields) < 4 {
			err = errors.New("usage: /login <id> <name> <email> [role]")
			break
		}
		id := domain.Identity{
			Authenticated: true,
			UserID:        fields[1],
			DisplayName:   fields[2],
			Email:         fields[3],
			Role:          domain.RoleClient,
		}
		if len(fields) > 4 {
			id.Role = domain.ParseRole(fields[4])
		}
		s.stack.identity.Set(id)
		s.printf("logged in as %s, widget %s\n", id.DisplayName, shownOrHidden(s.widget.Visible(ctx)))
	case "/logout":
		s.stack.identity.Clear()
		s.printf("logged out, widget %s\n", shownOrHidden(s.widget.Visible(ctx)))
	case "/open":
		inquiry := ""
		if len(fields) > 1 {
			inquiry = strings.Join(fields[1:], " ")
		}
		err = s.widget.Open(ctx, inquiry)
	case "/close":
		err = s.widget.Close()
	case "/reconnect":
		err = s.widget.Reconnect(ctx)
	case "/dismiss":
		err = s.widget.Dismiss(ctx)
	case "/undismiss":
		err = s.widget.ResetDismissal(ctx)
	case "/status":
		s.printStatus(ctx)
	default:
		err = fmt.Errorf("unknown command %s, try /help", fields[0])
	}
	if err != nil {
		s.printf("! %v\n", err)
	}
	s.flush()
	return false
}

func (s *chatSession) printStatus(ctx context.Context) {
	snap, err := s.widget.Snapshot()
	if err != nil {
		s.printf("! %v\n", err)
		return
	}
	s.printf("page=%s visible=%v state=%s conn=%s attempts=%d panel=%v status=%s\n",
		s.widget.Page().Path, s.widget.Visible(ctx), snap.State, snap.ConnState,
		snap.Attempts, snap.PanelOpen, snap.Status)
	if snap.Activation.Channel != "" {
		s.printf("fallback=%s %s\n", snap.Activation.Channel, snap.Activation.URL)
	}
}

// watch prints new messages and status changes until ctx is done.
func (s *chatSession) watch(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.flush()
		}
	}
}

// flush prints whatever the visitor has not seen yet.
func (s *chatSession) flush() {
	snap, err := s.widget.Snapshot()
	if err != nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.PanelOpen && snap.Status != s.status {
		s.printf("[%s]\n", snap.Status)
	}
	s.status = snap.Status
	for _, msg := range snap.Messages {
		if s.printed[msg.ID] || msg.Origin == domain.OriginUser {
			s.printed[msg.ID] = true
			continue
		}
		s.printed[msg.ID] = true
		s.printf("%s: %s\n", speaker(msg.Origin), msg.Text)
	}
	failedOver := snap.State == failover.StateFailedOver
	if failedOver && !s.announced && snap.Activation.Channel == domain.ChannelWidget {
		s.printf("[live chat opened in the support widget]\n")
	}
	s.announced = failedOver
}

func (s *chatSession) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

func speaker(o domain.Origin) string {
	switch o {
	case domain.OriginRemoteAgent:
		return "agent"
	case domain.OriginSystem:
		return "system"
	default:
		return "you"
	}
}

func shownOrHidden(visible bool) string {
	if visible {
		return "shown"
	}
	return "hidden"
}
