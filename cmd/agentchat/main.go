package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"

	"github.com/agentchat/agentchat-go/internal/api"
	"github.com/agentchat/agentchat-go/internal/catalog"
	"github.com/agentchat/agentchat-go/internal/chat"
	"github.com/agentchat/agentchat-go/internal/config"
	"github.com/agentchat/agentchat-go/internal/history"
	"github.com/agentchat/agentchat-go/internal/logger"
	"github.com/agentchat/agentchat-go/internal/session"
)

const helpText = `commands:
  /login <username>      sign in (prompts for password)
  /logout                drop the stored credential
  /conversations         list conversations
  /new [title]           create a conversation and switch to it
  /switch <id>           make a conversation active
  /delete <id>           delete a conversation
  /agents                list available agent modes
  /agent <mode>          select the agent mode for new messages
  /tools                 list backend tools
  /history [id]          show the locally mirrored transcript
  /plain <text>          send without streaming (single JSON answer)
  /quit                  exit
anything else is sent to the active conversation as a streamed message`

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.L.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Log.Level, cfg.Log.Format)

	sess := session.Open(cfg.Storage.SessionDBPath)
	defer sess.Close()
	sess.OnAuthExpired(func() {
		fmt.Fprintln(os.Stderr, "session expired; use /login to sign in again")
	})

	client := api.New(cfg.Server.BaseURL, cfg.Server.Timeout, sess)
	hist := history.Open(cfg.Storage.HistoryDBPath)
	defer hist.Close()
	store := chat.New(client, hist, cfg.Agent.DefaultMode)
	registry := catalog.NewRegistry()

	line := liner.NewLiner()
	defer line.Close()
	line.SetCtrlCAborts(true)

	fmt.Println("agentchat — /help for commands")
	ctx := context.Background()

	if sess.Token() != "" {
		if err := store.LoadConversations(ctx); err == nil {
			fmt.Printf("%d conversation(s) loaded\n", len(store.Conversations()))
		}
	}

	for {
		input, err := line.Prompt(prompt(store))
		if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			logger.L.Error("prompt failed", "error", err)
			break
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, line, client, store, registry, hist, sess, input); quit {
				break
			}
			continue
		}
		sendStreaming(ctx, store, input)
	}
}

func prompt(store *chat.Store) string {
	if id := store.ActiveID(); id != "" {
		short := id
		if len(short) > 8 {
			short = short[:8]
		}
		return "[" + short + " " + store.AgentMode() + "] > "
	}
	return "[" + store.AgentMode() + "] > "
}

func sendStreaming(ctx context.Context, store *chat.Store, text string) {
	err := store.SendMessage(ctx, text, func(frag string) {
		fmt.Print(frag)
	})
	fmt.Println()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error: "+store.Err())
	}
}

func runCommand(ctx context.Context, line *liner.State, client *api.Client, store *chat.Store, registry *catalog.Registry, hist *history.Store, sess *session.Store, input string) bool {
	fields := strings.Fields(input)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/help":
		fmt.Println(helpText)

	case "/quit", "/exit":
		return true

	case "/login":
		if len(args) != 1 {
			fmt.Println("usage: /login <username>")
			return false
		}
		password, err := line.PasswordPrompt("password: ")
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: aborted")
			return false
		}
		if _, err := client.Login(ctx, api.LoginRequest{Username: args[0], Password: password}); err != nil {
			fmt.Fprintln(os.Stderr, "error: "+err.Error())
			return false
		}
		fmt.Println("signed in as " + args[0])
		if err := store.LoadConversations(ctx); err == nil {
			fmt.Printf("%d conversation(s) loaded\n", len(store.Conversations()))
		}

	case "/logout":
		sess.Clear()
		fmt.Println("signed out")

	case "/conversations":
		if err := store.LoadConversations(ctx); err != nil {
			fmt.Fprintln(os.Stderr, "error: "+store.Err())
			return false
		}
		active := store.ActiveID()
		for _, c := range store.Conversations() {
			marker := " "
			if c.ID == active {
				marker = "*"
			}
			title := "(untitled)"
			if c.Title != nil && *c.Title != "" {
				title = *c.Title
			}
			fmt.Printf("%s %s  %s\n", marker, c.ID, title)
		}

	case "/new":
		payload := api.ConversationCreate{}
		if title := strings.Join(args, " "); title != "" {
			payload.Title = &title
		}
		conv, err := store.CreateConversation(ctx, payload)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: "+store.Err())
			return false
		}
		fmt.Println("created " + conv.ID)

	case "/switch":
		if len(args) != 1 {
			fmt.Println("usage: /switch <id>")
			return false
		}
		if err := store.SwitchConversation(ctx, args[0]); err != nil {
			fmt.Fprintln(os.Stderr, "error: "+store.Err())
			return false
		}
		for _, m := range store.ActiveMessages() {
			printMessage(m)
		}

	case "/delete":
		if len(args) != 1 {
			fmt.Println("usage: /delete <id>")
			return false
		}
		if err := store.DeleteConversation(ctx, args[0]); err != nil {
			fmt.Fprintln(os.Stderr, "error: "+store.Err())
			return false
		}
		fmt.Println("deleted " + args[0])

	case "/agents":
		agents, err := client.ListAgents(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: "+err.Error())
			return false
		}
		registry.SetAgents(agents)
		for _, a := range registry.Agents() {
			desc := ""
			if a.Description != nil {
				desc = "  " + *a.Description
			}
			fmt.Printf("%-14s %s%s\n", a.Mode, a.Name, desc)
		}

	case "/agent":
		if len(args) != 1 {
			fmt.Println("usage: /agent <mode>")
			return false
		}
		store.SetAgentMode(args[0])
		fmt.Println("agent mode: " + store.AgentMode())

	case "/tools":
		tools, err := client.ListTools(ctx)
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: "+err.Error())
			return false
		}
		registry.SetTools(tools)
		for _, tl := range registry.Tools() {
			desc := ""
			if tl.Description != nil {
				desc = "  " + *tl.Description
			}
			fmt.Printf("%-14s%s\n", tl.Name, desc)
		}

	case "/history":
		id := store.ActiveID()
		if len(args) == 1 {
			id = args[0]
		}
		if id == "" {
			fmt.Println("usage: /history <id> (no active conversation)")
			return false
		}
		for _, m := range hist.List(id) {
			printMessage(m)
		}

	case "/plain":
		if len(args) == 0 {
			fmt.Println("usage: /plain <text>")
			return false
		}
		resp, err := store.SendMessageSimple(ctx, strings.Join(args, " "))
		if err != nil {
			fmt.Fprintln(os.Stderr, "error: "+store.Err())
			return false
		}
		fmt.Println(resp.Answer)

	default:
		fmt.Println("unknown command " + cmd + "; /help for commands")
	}
	return false
}

func printMessage(m api.Message) {
	who := "you"
	if m.Role == api.RoleAgent {
		who = m.AgentMode
		if who == "" {
			who = "agent"
		}
	}
	fmt.Printf("%s: %s\n", who, m.Content)
}
