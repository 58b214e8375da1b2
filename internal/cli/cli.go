// Package cli is the pagewidgets command line: it drives the widgets against
// their endpoints on an in-memory page and prints what they render.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/gookit/color"
	"github.com/spf13/cobra"

	"github.com/johndosdos/pagewidgets/internal/channel"
	"github.com/johndosdos/pagewidgets/internal/chat"
	"github.com/johndosdos/pagewidgets/internal/config"
	"github.com/johndosdos/pagewidgets/internal/dom"
	"github.com/johndosdos/pagewidgets/internal/logging"
	"github.com/johndosdos/pagewidgets/internal/userlist"
)

// ErrConfig marks configuration failures so main can pick the exit code.
var ErrConfig = errors.New("invalid configuration")

type app struct {
	cfg config.Config
	in  io.Reader
	out io.Writer
}

// NewRootCmd builds the command tree reading chat input from in and
// printing to out.
func NewRootCmd(in io.Reader, out io.Writer) *cobra.Command {
	a := &app{in: in, out: out}

	root := &cobra.Command{
		Use:           "pagewidgets",
		Short:         "Run the user list and chat widgets from the terminal",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("%w: %v", ErrConfig, err)
			}
			a.cfg = cfg
			logging.New(cmd.ErrOrStderr(), cfg.LogFormat, cfg.LogLevel)
			return nil
		},
	}
	root.SetIn(in)
	root.SetOut(out)

	root.AddCommand(a.usersCmd(), a.chatCmd())
	return root
}

func (a *app) usersCmd() *cobra.Command {
	users := &cobra.Command{
		Use:   "users",
		Short: "User list widget",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "Load the users and print the rendered list",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.listUsers(cmd.Context())
		},
	}

	var id, username, message string
	add := &cobra.Command{
		Use:   "add",
		Short: "Fill the form and click submit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.addUser(cmd.Context(), id, username, message)
		},
	}
	add.Flags().StringVar(&id, "id", "", "user id")
	add.Flags().StringVar(&username, "username", "", "user name")
	add.Flags().StringVar(&message, "message", "", "message")

	users.AddCommand(list, add)
	return users
}

func (a *app) listUsers(ctx context.Context) error {
	cfg := a.cfg.UserList()
	doc := dom.NewDocument()
	userlist.Scaffold(doc, cfg)

	w, err := userlist.New(cfg, doc)
	if err != nil {
		return err
	}
	if err := w.LoadUsers(ctx); err != nil {
		return err
	}

	markup := doc.QuerySelector(cfg.ContainerSelector).InnerHTML()
	for _, line := range dom.TextByClass(markup, "app__user") {
		fmt.Fprintln(a.out, color.Green.Sprint(line))
	}
	return nil
}

func (a *app) addUser(ctx context.Context, id, username, message string) error {
	cfg := a.cfg.UserList()
	doc := dom.NewDocument()
	userlist.Scaffold(doc, cfg)

	w, err := userlist.New(cfg, doc)
	if err != nil {
		return err
	}
	if err := w.Bind(ctx); err != nil {
		return err
	}

	doc.GetElementByID(cfg.IDField).SetValue(id)
	doc.GetElementByID(cfg.UsernameField).SetValue(username)
	doc.GetElementByID(cfg.MessageField).SetValue(message)
	doc.GetElementByID(cfg.ButtonID).Click()
	w.Wait()
	return nil
}

func (a *app) chatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Connect to the chat channel; every input line is sent",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.chat(cmd.Context())
		},
	}
}

func (a *app) chat(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	cfg := a.cfg.Chat()
	doc := dom.NewDocument()
	chat.Scaffold(doc, cfg)

	var chOpts []channel.Option
	if a.cfg.ChatRateLimit > 0 {
		chOpts = append(chOpts, channel.WithRateLimit(a.cfg.ChatRateLimit, time.Minute))
	}

	w, ws, err := chat.Open(ctx, cfg, doc, nil, chOpts...)
	if err != nil {
		return err
	}
	defer ws.Close()

	list := doc.QuerySelector(cfg.MessagesSelector)
	ws.On(channel.EventNewMessage, func(string) {
		items := list.Children()
		if len(items) == 0 {
			return
		}
		fmt.Fprintln(a.out, color.Cyan.Sprint(items[len(items)-1].TextContent()))
	})

	runErr := make(chan error, 1)
	go func() {
		runErr <- ws.Run(ctx)
		cancel()
	}()

	input := doc.QuerySelector(cfg.InputSelector)
	send := doc.GetElementByID(cfg.SendButtonID)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(a.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				w.Wait()
				ws.Close()
				return <-runErr
			}
			input.SetValue(line)
			send.Click()

		case <-ctx.Done():
			w.Wait()
			ws.Close()
			return <-runErr
		}
	}
}
