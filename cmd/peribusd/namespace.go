package main

import (
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"

	"github.com/peripherialabs/peribus-sub000/fs"
	"github.com/peripherialabs/peribus-sub000/internal/config"
	"github.com/peripherialabs/peribus-sub000/internal/qidpool"
	"github.com/peripherialabs/peribus-sub000/routes"
)

// signalNames maps the control-grammar's "signal NAME" argument to an
// actual os.Signal; only the handful a shell session plausibly needs
// are supported.
var signalNames = map[string]syscall.Signal{
	"HUP":  syscall.SIGHUP,
	"INT":  syscall.SIGINT,
	"TERM": syscall.SIGTERM,
	"KILL": syscall.SIGKILL,
	"QUIT": syscall.SIGQUIT,
}

// namespace is the example tree built for the "serve" command: one
// directory per agent (input/output/code/ctl) plus a shell directory
// (out/ctl backed by a real PTY) and a root-level routes file.
type namespace struct {
	pool *qidpool.Pool
	root *fs.Dir
	mgr  *routes.Manager
}

// Resolve implements routes.Resolver by walking the namespace's own
// root directory one component at a time.
func (n *namespace) Resolve(path string) (fs.File, bool) {
	var cur fs.File = n.root
	if path == "" || path == "/" {
		return cur, true
	}
	for _, part := range splitPath(path) {
		dir, ok := cur.(fs.Directory)
		if !ok {
			return nil, false
		}
		f, ok, err := dir.Walk(context.Background(), part)
		if err != nil || !ok {
			return nil, false
		}
		cur = f
	}
	return cur, true
}

func splitPath(path string) []string {
	var parts []string
	start := 0
	for i := 0; i <= len(path); i++ {
		if i == len(path) || path[i] == '/' {
			if i > start {
				parts = append(parts, path[start:i])
			}
			start = i + 1
		}
	}
	return parts
}

// buildNamespace assembles the example tree, with the routes manager
// mounted behind its root-level routes file, and returns it with that
// manager attached so callers (main.go) can stop every route on
// shutdown.
func buildNamespace(cfg config.Config, agentNames []string, shellName string) (*namespace, error) {
	pool := qidpool.New()
	root := fs.NewDir(pool, "/", "/", 0o555)

	ns := &namespace{pool: pool, root: root}
	mgr := routes.NewManager(ns)
	ns.mgr = mgr

	agentsDir := fs.NewDir(pool, "/agents", "agents", 0o555)
	root.Add("agents", agentsDir)

	for _, name := range agentNames {
		dir, err := buildAgentDir(pool, "/agents/"+name, cfg)
		if err != nil {
			return nil, fmt.Errorf("namespace: agent %q: %w", name, err)
		}
		agentsDir.Add(name, dir)
	}

	if shellName != "" {
		dir, err := buildShellDir(pool, "/"+shellName, cfg)
		if err != nil {
			return nil, fmt.Errorf("namespace: shell %q: %w", shellName, err)
		}
		root.Add(shellName, dir)
	}

	root.Add("routes", routes.NewFile(pool, "/routes", "routes", 0o666, mgr))

	return ns, nil
}

// agentHandler implements fs.Handler for an agent's ctl file: reset
// starts a fresh generation on output, stop/kill ends the current one
// without starting another.
type agentHandler struct {
	name   string
	output *fs.StreamFile

	mu  sync.Mutex
	gen uint64
}

func (h *agentHandler) Execute(line string) ([]byte, error) {
	switch line {
	case "reset", "start":
		h.mu.Lock()
		h.gen = h.output.Reset()
		h.mu.Unlock()
		return nil, nil
	case "stop", "kill":
		h.output.Finish()
		return nil, nil
	default:
		return nil, fmt.Errorf("agent %s: unknown command %q", h.name, line)
	}
}

func (h *agentHandler) Status() []byte {
	h.mu.Lock()
	gen := h.gen
	h.mu.Unlock()
	return []byte(fmt.Sprintf("agent=%s generation=%d\n", h.name, gen))
}

func buildAgentDir(pool *qidpool.Pool, path string, cfg config.Config) (*fs.Dir, error) {
	dir := fs.NewDir(pool, path, lastComponent(path), 0o555)

	dir.Add("input", fs.NewDataFile(pool, path+"/input", "input", 0o666))
	output := fs.NewStreamFile(pool, path+"/output", "output", 0o666, cfg.StreamBufferBytes)
	dir.Add("output", output)
	dir.Add("code", fs.NewSupplementFile(pool, path+"/code", "code", 0o444))
	// queue holds prompts submitted faster than the agent can consume
	// them: a queued backlog instead of overwriting "input".
	dir.Add("queue", fs.NewQueueFile(pool, path+"/queue", "queue", 0o666, cfg.QueueCapacity))

	handler := &agentHandler{name: lastComponent(path), output: output}
	dir.Add("ctl", fs.NewControlFile(pool, path+"/ctl", "ctl", 0o666, handler))

	return dir, nil
}

// shellHandler implements fs.Handler for a PTY-backed shell's ctl
// file: "send TEXT" forwards a line to the shell's stdin and starts a
// fresh output capture, "resize R C" and "signal NAME" reach the PTY
// directly.
type shellHandler struct {
	name string
	pty  *fs.PtyFile
}

func (h *shellHandler) Execute(line string) ([]byte, error) {
	verb, rest := splitVerb(line)
	switch verb {
	case "send":
		return nil, h.pty.SendLine(rest)
	case "resize":
		var rows, cols uint16
		if _, err := fmt.Sscanf(rest, "%d %d", &rows, &cols); err != nil {
			return nil, fmt.Errorf("shell %s: resize wants \"rows cols\": %w", h.name, err)
		}
		return nil, h.pty.Resize(rows, cols)
	case "signal":
		sig, ok := signalNames[rest]
		if !ok {
			return nil, fmt.Errorf("shell %s: unknown signal %q", h.name, rest)
		}
		return nil, h.pty.Signal(sig)
	case "kill", "stop":
		return nil, h.pty.Close()
	default:
		return nil, fmt.Errorf("shell %s: unknown command %q", h.name, line)
	}
}

func (h *shellHandler) Status() []byte {
	return []byte(fmt.Sprintf("shell=%s\n", h.name))
}

func splitVerb(line string) (verb, rest string) {
	for i := 0; i < len(line); i++ {
		if line[i] == ' ' {
			return line[:i], line[i+1:]
		}
	}
	return line, ""
}

func buildShellDir(pool *qidpool.Pool, path string, cfg config.Config) (*fs.Dir, error) {
	dir := fs.NewDir(pool, path, lastComponent(path), 0o555)

	cmd := exec.Command(cfg.Shell[0], cfg.Shell[1:]...)
	pf, err := fs.NewPtyFile(pool, path+"/out", "out", 0o444, cmd)
	if err != nil {
		return nil, err
	}
	dir.Add("out", pf)

	scrollback := fs.NewStreamFile(pool, path+"/scrollback", "scrollback", 0o444, cfg.ShellStreamBufferBytes)
	scrollback.Reset()
	pf.SetScrollback(scrollback)
	dir.Add("scrollback", scrollback)

	handler := &shellHandler{name: lastComponent(path), pty: pf}
	dir.Add("ctl", fs.NewControlFile(pool, path+"/ctl", "ctl", 0o666, handler))

	return dir, nil
}

func lastComponent(path string) string {
	parts := splitPath(path)
	if len(parts) == 0 {
		return "/"
	}
	return parts[len(parts)-1]
}
