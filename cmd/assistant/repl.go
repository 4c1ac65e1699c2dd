package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/easeaico/recall/internal/chat"
	"github.com/easeaico/recall/internal/config"
	"github.com/easeaico/recall/internal/memory"
	"github.com/easeaico/recall/internal/types"
)

const helpText = `Commands:
  /extract        save facts from your messages in this conversation
  /facts          list what is stored about you
  /new            start a new conversation
  /history        list saved conversations
  /load N         load conversation N from /history
  /set key=value  change temperature, top_p, max_tokens, frequency_penalty, presence_penalty
  /params         show the current reply parameters
  /help           show this help
  /quit           end the session`

// repl is the state of one interactive chat.
type repl struct {
	service *chat.Service
	sess    *chat.Session
	out     io.Writer
	stream  bool
	listed  []types.Conversation
}

func runChat(ctx context.Context, in io.Reader, out io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.service.Login(ownerID)
	if err != nil {
		return err
	}
	defer a.service.Logout(sess)

	r := &repl{service: a.service, sess: sess, out: out, stream: !noStream}
	fmt.Fprintf(out, "Logged in as %s. Type /help for commands.\n", sess.OwnerID())

	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		quit, err := r.handle(ctx, line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
		if quit || ctx.Err() != nil {
			return nil
		}
	}
}

func (r *repl) handle(ctx context.Context, line string) (bool, error) {
	if !strings.HasPrefix(line, "/") {
		return false, r.turn(ctx, line)
	}

	cmd, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)
	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		fmt.Fprintln(r.out, helpText)
	case "/extract":
		return false, r.extract(ctx)
	case "/facts":
		return false, r.facts(ctx)
	case "/new":
		if err := r.service.NewConversation(r.sess); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, "Started a new conversation.")
	case "/history":
		return false, r.history(ctx)
	case "/load":
		return false, r.load(ctx, arg)
	case "/set":
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return false, errors.New("usage: /set key=value")
		}
		if err := r.sess.Set(strings.TrimSpace(key), value); err != nil {
			return false, err
		}
		fmt.Fprintln(r.out, r.sess.Params())
	case "/params":
		fmt.Fprintln(r.out, r.sess.Params())
	default:
		return false, fmt.Errorf("unknown command %s, try /help", cmd)
	}
	return false, nil
}

func (r *repl) turn(ctx context.Context, input string) error {
	var onDelta func(string)
	if r.stream {
		onDelta = func(delta string) { fmt.Fprint(r.out, delta) }
	}
	result, err := r.service.Turn(ctx, r.sess, input, onDelta)
	if err != nil {
		return err
	}
	if r.stream {
		fmt.Fprintln(r.out)
	} else {
		fmt.Fprintln(r.out, result.Reply)
	}
	if result.SaveErr != nil {
		fmt.Fprintf(r.out, "warning: conversation not saved: %v\n", result.SaveErr)
	}
	return nil
}

func (r *repl) extract(ctx context.Context) error {
	report, err := r.service.ExtractFacts(ctx, r.sess)
	if errors.Is(err, types.ErrNoMessages) {
		fmt.Fprintln(r.out, "No messages to extract.")
		return nil
	}
	switch {
	case report.Extraction != memory.ExtractionFound && err == nil:
		fmt.Fprintln(r.out, "No facts found.")
	case report.NothingNew() && err == nil:
		fmt.Fprintln(r.out, "Information already saved.")
	default:
		for _, fact := range report.Stored {
			fmt.Fprintf(r.out, "saved %s\n", fact.Content)
		}
	}
	return err
}

func (r *repl) facts(ctx context.Context) error {
	facts, err := r.service.Facts(ctx, r.sess)
	if err != nil {
		return err
	}
	printFacts(r.out, facts)
	return nil
}

func (r *repl) history(ctx context.Context) error {
	convs, err := r.service.Conversations(ctx, r.sess)
	if err != nil {
		return err
	}
	r.listed = convs
	if len(convs) == 0 {
		fmt.Fprintln(r.out, "No saved conversations.")
		return nil
	}
	current := r.sess.ConversationID()
	for i, conv := range convs {
		marker := " "
		if conv.ID == current {
			marker = "*"
		}
		fmt.Fprintf(r.out, "%s%2d  %s  (%s)\n", marker, i+1, conv.DisplayTitle(), conv.UpdatedAt.Format(types.TitleTimeLayout))
	}
	return nil
}

func (r *repl) load(ctx context.Context, arg string) error {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 || n > len(r.listed) {
		return errors.New("usage: /load N, with N from /history")
	}
	conv := r.listed[n-1]
	if err := r.service.LoadConversation(ctx, r.sess, conv.ID); err != nil {
		return err
	}
	for _, msg := range r.sess.Messages() {
		fmt.Fprintf(r.out, "%s: %s\n", msg.Role, msg.Content)
	}
	return nil
}

func runFacts(ctx context.Context, out io.Writer) error {
	cfg, err := config.FromEnv()
	if err != nil {
		return err
	}
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.close()

	sess, err := a.service.Login(ownerID)
	if err != nil {
		return err
	}
	defer a.service.Logout(sess)

	facts, err := a.service.Facts(ctx, sess)
	if err != nil {
		return err
	}
	printFacts(out, facts)
	return nil
}

func printFacts(out io.Writer, facts []types.Fact) {
	if len(facts) == 0 {
		fmt.Fprintln(out, "No facts stored yet.")
		return
	}
	for _, fact := range facts {
		fmt.Fprintf(out, "[%s] %s\n", fact.Category, fact.Content)
	}
}
