// ngobrol — room chat and calling client.
//
// Join a room on a relay server, exchange messages with whoever shares the
// room code, and start or answer a peer-to-peer voice/video call. The relay
// only carries signaling and chat; call media flows directly between peers.
//
// It can be launched interactively (no flags) or non-interactively via CLI
// flags (-relay, -room, -name).
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pterm/pterm"

	"github.com/aldisr/ngobrol/internal/blob"
	"github.com/aldisr/ngobrol/internal/call"
	"github.com/aldisr/ngobrol/internal/chat"
	"github.com/aldisr/ngobrol/internal/config"
	"github.com/aldisr/ngobrol/internal/engine"
	"github.com/aldisr/ngobrol/internal/identity"
	"github.com/aldisr/ngobrol/internal/media"
	"github.com/aldisr/ngobrol/internal/presence"
	"github.com/aldisr/ngobrol/internal/relay/wsrelay"
	"github.com/aldisr/ngobrol/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	relayURL := flag.String("relay", "http://localhost:8080", "relay server base URL")
	room := flag.String("room", "", "room code (empty: prompt, 'new': generate)")
	name := flag.String("name", "", "display name (empty: prompt)")
	dataDir := flag.String("dataDir", defaultDataDir(), "directory for the persisted identity")
	debugMode := flag.Bool("debug", false, "enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	pterm.Info.Println(fmt.Sprintf("ngobrol — v%s", version))
	pterm.Println()

	cfg := config.Config{
		RelayURL: strings.TrimSuffix(*relayURL, "/"),
		Room:     *room,
		Name:     *name,
		DataDir:  *dataDir,
	}

	if cfg.Name == "" {
		cfg.Name, _ = pterm.DefaultInteractiveTextInput.
			WithDefaultText("Your display name").
			Show()
	}
	switch cfg.Room {
	case "":
		cfg.Room, _ = pterm.DefaultInteractiveTextInput.
			WithDefaultText("Room code (empty to create a new room)").
			Show()
		if cfg.Room == "" {
			cfg.Room = config.RandomRoom()
		}
	case "new":
		cfg.Room = config.RandomRoom()
	}
	cfg.Room = strings.ToLower(strings.TrimSpace(cfg.Room))
	if cfg.Name == "" || cfg.Room == "" {
		util.LogError("both a display name and a room code are required")
		os.Exit(1)
	}

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("left room — %s", util.Stats.Summary())
}

func run(ctx context.Context, cfg config.Config) error {
	uid, err := identity.Anonymous(cfg.DataDir)
	if err != nil {
		return err
	}

	store, err := wsrelay.Dial(ctx, cfg.WSURL())
	if err != nil {
		return err
	}
	defer store.Close()
	util.LogInfo("connected to relay %s", cfg.RelayURL)

	tracker := presence.NewTracker(store, cfg.Room, uid, cfg.Name)
	if err := tracker.Join(ctx); err != nil {
		return fmt.Errorf("join room: %w", err)
	}
	defer tracker.Leave(context.Background())

	cancelPresence, err := tracker.Watch(ctx, func(online []presence.Info) {
		names := make([]string, 0, len(online))
		for _, m := range online {
			names = append(names, m.Name)
		}
		pterm.FgGray.Println("online: " + strings.Join(names, ", "))
	})
	if err != nil {
		return fmt.Errorf("watch presence: %w", err)
	}
	defer cancelPresence()

	msgs := chat.NewLog(store, cfg.Room, cfg.Name, uid)
	printer := newMessagePrinter(uid)
	cancelChat, err := msgs.Watch(ctx, printer.print)
	if err != nil {
		return fmt.Errorf("watch messages: %w", err)
	}
	defer cancelChat()

	caller := call.NewClient(store, engine.NewPion, &media.SampleSource{})
	blobs := &blob.HTTP{BaseURL: cfg.RelayURL}

	pterm.Success.Println(fmt.Sprintf("joined room %s as %s", cfg.Room, cfg.Name))
	pterm.FgGray.Println("commands: /call voice|video  /join  /hangup  /mute  /cam  /send <file>  /quit")

	repl := &repl{
		cfg:    cfg,
		uid:    uid,
		msgs:   msgs,
		caller: caller,
		blobs:  blobs,
	}
	return repl.loop(ctx)
}

// repl reads commands and chat lines from stdin until /quit or EOF.
type repl struct {
	cfg    config.Config
	uid    string
	msgs   *chat.Log
	caller *call.Client
	blobs  blob.Store

	// mu guards the call state: the attach goroutine clears session when the
	// remote side hangs up, concurrently with commands on the main goroutine.
	mu      sync.Mutex
	session *call.Session
	muted   bool
	camOff  bool
}

func (r *repl) loop(ctx context.Context) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "/quit" {
			break
		}
		if strings.HasPrefix(line, "/") {
			r.command(ctx, line)
			continue
		}
		if err := r.msgs.SendText(ctx, line); err != nil {
			util.LogWarning("send failed: %v", err)
		}
	}
	if s := r.detach(); s != nil {
		s.End(ctx)
	}
	return scanner.Err()
}

func (r *repl) command(ctx context.Context, line string) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/call":
		kind := call.KindVoice
		if len(fields) > 1 && fields[1] == "video" {
			kind = call.KindVideo
		}
		r.start(ctx, kind)

	case "/join":
		r.join(ctx)

	case "/hangup":
		s := r.detach()
		if s == nil {
			pterm.Warning.Println("no active call")
			return
		}
		s.End(ctx)
		pterm.Info.Println("call ended")

	case "/mute":
		r.mu.Lock()
		s := r.session
		if s == nil {
			r.mu.Unlock()
			pterm.Warning.Println("no active call")
			return
		}
		r.muted = !r.muted
		muted := r.muted
		r.mu.Unlock()
		s.SetMuted(muted)
		pterm.Info.Println(fmt.Sprintf("muted: %v", muted))

	case "/cam":
		r.mu.Lock()
		s := r.session
		if s == nil {
			r.mu.Unlock()
			pterm.Warning.Println("no active call")
			return
		}
		r.camOff = !r.camOff
		off := r.camOff
		r.mu.Unlock()
		s.SetCameraOff(off)
		pterm.Info.Println(fmt.Sprintf("camera off: %v", off))

	case "/send":
		if len(fields) < 2 {
			pterm.Warning.Println("usage: /send <file>")
			return
		}
		r.sendFile(ctx, strings.Join(fields[1:], " "))

	default:
		pterm.Warning.Println("unknown command " + fields[0])
	}
}

func (r *repl) start(ctx context.Context, kind call.Kind) {
	if r.current() != nil {
		pterm.Warning.Println("already in a call, /hangup first")
		return
	}
	s, err := r.caller.StartCall(ctx, r.cfg.Room, r.cfg.Name, kind, printStatus)
	if err != nil {
		util.LogError("start call: %v", err)
		return
	}
	r.attach(s)
	pterm.Info.Println(fmt.Sprintf("%s call started, waiting for answer…", kind))
}

func (r *repl) join(ctx context.Context) {
	if r.current() != nil {
		pterm.Warning.Println("already in a call, /hangup first")
		return
	}
	s, err := r.caller.JoinCall(ctx, r.cfg.Room, printStatus)
	if err != nil {
		if errors.Is(err, call.ErrNoActiveCall) {
			pterm.Warning.Println("nobody is calling — ask the other side to /call first")
			return
		}
		util.LogError("join call: %v", err)
		return
	}
	r.attach(s)
	pterm.Info.Println(fmt.Sprintf("joined %s call", s.Kind))
}

func (r *repl) attach(s *call.Session) {
	r.mu.Lock()
	r.session = s
	r.muted = false
	r.camOff = false
	r.mu.Unlock()
	go func() {
		<-s.Done()
		r.mu.Lock()
		// A newer session may already be attached after a hangup.
		if r.session == s {
			r.session = nil
		}
		r.mu.Unlock()
		pterm.Info.Println("call closed")
	}()
}

func (r *repl) current() *call.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.session
}

// detach removes the active session, if any, so the caller can end it.
func (r *repl) detach() *call.Session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.session
	r.session = nil
	return s
}

func (r *repl) sendFile(ctx context.Context, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		util.LogError("read %s: %v", path, err)
		return
	}
	key := r.cfg.Room + "/" + r.uid + "-" + filepath.Base(path)
	url, err := r.blobs.Put(ctx, key, data, "")
	if err != nil {
		util.LogError("upload %s: %v", path, err)
		return
	}
	if err := r.msgs.SendFile(ctx, url, filepath.Base(path), int64(len(data))); err != nil {
		util.LogWarning("send failed: %v", err)
	}
}

func printStatus(status call.Status) {
	pterm.FgGray.Println("call status: " + string(status))
}

// messagePrinter prints only messages not yet seen, since every watch
// delivery carries the full ordered log.
type messagePrinter struct {
	uid  string
	seen int
}

func newMessagePrinter(uid string) *messagePrinter {
	return &messagePrinter{uid: uid}
}

func (p *messagePrinter) print(history []chat.Message) {
	for _, m := range history[min(p.seen, len(history)):] {
		who := m.Name
		if m.UID == p.uid {
			who = "me"
		}
		switch m.Type {
		case chat.TypeText:
			pterm.Println(fmt.Sprintf("[%s] %s", who, m.Text))
		case chat.TypeImage:
			pterm.Println(fmt.Sprintf("[%s] 📷 %s %s", who, m.Caption, m.URL))
		case chat.TypeFile:
			pterm.Println(fmt.Sprintf("[%s] 📎 %s (%s) %s", who, m.FileName, m.SizeText, m.URL))
		case chat.TypeVoice:
			pterm.Println(fmt.Sprintf("[%s] 🎙️ voice note %s", who, m.URL))
		}
	}
	p.seen = len(history)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".ngobrol"
	}
	return filepath.Join(home, ".ngobrol")
}
