package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"path"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/bnema/weft/assets"
	"github.com/bnema/weft/internal/config"
	"github.com/bnema/weft/internal/history"
	"github.com/bnema/weft/pkg/webview"
)

// shell ties one webview handle to the history store and the IPC command
// protocol spoken by the embedded pages.
type shell struct {
	log   zerolog.Logger
	cfg   *config.Config
	store *history.Store
	view  *webview.Handle

	mu         sync.Mutex
	currentURL string
}

func (s *shell) current() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentURL
}

// ipcCommand is the message shape the shell pages post over the bridge.
type ipcCommand struct {
	Type   string  `json:"type"`
	URL    string  `json:"url,omitempty"`
	Factor float64 `json:"factor,omitempty"`
}

func runBrowse(ctx context.Context, log zerolog.Logger, cfg *config.Config, target string) error {
	s := &shell{log: log, cfg: cfg}

	if cfg.History.Enabled {
		store, err := history.Open(cfg.Database.Path)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				log.Warn().Err(err).Msg("failed to close history store")
			}
		}()
		s.store = store
	}

	viewCfg, err := webview.NewBuilder().
		URL(target).
		Scheme("weft", webview.SchemeHandlerFunc(s.serveWebUI)).
		OnIPCMessage(s.handleIPC).
		OnNavigate(s.handleNavigate).
		OnTitleChanged(s.handleTitle).
		DataDir(cfg.Browsing.DataDir).
		Incognito(cfg.Browsing.Incognito).
		DevTools(cfg.Browsing.DevTools).
		UserAgent(cfg.Browsing.UserAgent).
		ZoomDefault(cfg.Browsing.DefaultZoom).
		Logger(log).
		Build()
	if err != nil {
		return fmt.Errorf("invalid webview configuration: %w", err)
	}

	view, err := webview.New(webview.NoWindow(), viewCfg)
	if err != nil {
		return fmt.Errorf("failed to construct webview: %w", err)
	}
	s.view = view
	defer view.Destroy()

	log.Info().
		Str("backend", view.Backend()).
		Str("capabilities", view.Capabilities().String()).
		Str("url", target).
		Msg("browsing")

	// The headless engine resolves the page without a display; show the
	// result and return. Engines with a real surface run until interrupted.
	if webview.HeadlessFlush(view) {
		webview.HeadlessFlush(view)
		if text, ok := webview.HeadlessBodyText(view); ok {
			fmt.Println(text)
		}
		return nil
	}

	<-ctx.Done()
	return nil
}

// serveWebUI answers weft:// requests from the embedded shell pages.
func (s *shell) serveWebUI(req *webview.Request, respond func(*webview.Response)) {
	u, err := url.Parse(req.URL)
	if err != nil {
		respond(webUIError(400, "unparseable URL"))
		return
	}

	name := strings.TrimPrefix(path.Clean(u.Path), "/")
	if name == "" || name == "." {
		name = "home.html"
	}

	if name == "recent.json" {
		respond(s.serveRecent())
		return
	}

	data, err := assets.WebUIAssets.ReadFile("webui/" + name)
	if err != nil {
		respond(webUIError(404, "no such page"))
		return
	}

	resp := &webview.Response{Status: 200, Header: webview.NewHeader(), Body: data}
	resp.Header.Set("Content-Type", mimeFor(name))
	respond(resp)
}

func (s *shell) serveRecent() *webview.Response {
	type entry struct {
		URL   string `json:"url"`
		Title string `json:"title"`
	}
	out := []entry{}
	if s.store != nil {
		recent, err := s.store.Recent(context.Background(), 20)
		if err != nil {
			s.log.Warn().Err(err).Msg("failed to load recent history")
		}
		for _, e := range recent {
			out = append(out, entry{URL: e.URL, Title: e.Title})
		}
	}
	body, err := json.Marshal(out)
	if err != nil {
		return webUIError(500, "encoding failed")
	}
	resp := &webview.Response{Status: 200, Header: webview.NewHeader(), Body: body}
	resp.Header.Set("Content-Type", "application/json")
	return resp
}

func webUIError(status int, detail string) *webview.Response {
	resp := &webview.Response{
		Status: status,
		Header: webview.NewHeader(),
		Body:   []byte(detail),
	}
	resp.Header.Set("Content-Type", "text/plain")
	return resp
}

func mimeFor(name string) string {
	switch path.Ext(name) {
	case ".html":
		return "text/html"
	case ".js":
		return "text/javascript"
	case ".css":
		return "text/css"
	case ".json":
		return "application/json"
	case ".svg":
		return "image/svg+xml"
	}
	return "application/octet-stream"
}

// handleIPC dispatches commands posted by the shell pages.
func (s *shell) handleIPC(msg webview.Message) {
	var cmd ipcCommand
	if err := json.Unmarshal([]byte(msg.Body), &cmd); err != nil {
		s.log.Debug().Str("body", msg.Body).Msg("ignoring non-command ipc message")
		return
	}

	switch cmd.Type {
	case "navigate":
		if err := s.view.Navigate(cmd.URL); err != nil {
			s.log.Warn().Err(err).Str("url", cmd.URL).Msg("navigation failed")
		}
	case "zoom":
		if err := s.view.SetZoom(cmd.Factor); err != nil {
			s.log.Warn().Err(err).Msg("zoom change failed")
		} else if s.store != nil {
			if o := originOf(s.current()); o != "" {
				if err := s.store.SetZoom(context.Background(), o, cmd.Factor); err != nil {
					s.log.Warn().Err(err).Msg("failed to persist zoom level")
				}
			}
		}
	default:
		s.log.Debug().Str("type", cmd.Type).Msg("unknown ipc command")
	}
}

// handleNavigate records visits and restores the per-origin zoom level. It
// always allows the load; policy here is observation, not blocking.
func (s *shell) handleNavigate(target string) bool {
	s.mu.Lock()
	s.currentURL = target
	s.mu.Unlock()

	if s.store == nil || strings.HasPrefix(target, "weft://") {
		return true
	}

	// Store work happens off the owning thread; the decision must not wait
	// for the database.
	go func() {
		ctx := context.Background()
		if err := s.store.RecordVisit(ctx, target, ""); err != nil {
			s.log.Warn().Err(err).Msg("failed to record visit")
		}
		if o := originOf(target); o != "" {
			if factor, ok, err := s.store.Zoom(ctx, o); err == nil && ok {
				if err := s.view.SetZoom(factor); err != nil {
					s.log.Debug().Err(err).Msg("could not restore zoom")
				}
			}
		}
	}()
	return true
}

func (s *shell) handleTitle(title string) {
	s.log.Debug().Str("title", title).Msg("title changed")
	target := s.current()
	if s.store == nil || target == "" || strings.HasPrefix(target, "weft://") {
		return
	}
	go func() {
		if err := s.store.UpdateTitle(context.Background(), target, title); err != nil {
			s.log.Warn().Err(err).Msg("failed to update title")
		}
	}()
}

func originOf(target string) string {
	u, err := url.Parse(target)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}
