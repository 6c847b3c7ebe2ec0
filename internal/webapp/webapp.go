// internal/webapp/webapp.go
//
// Embedded verification mini-app.
//
// Context
// -------
// The /start reply carries a web-app button pointing at <public_url>/web_app/.
// The Telegram client opens that page in a webview; the page asks the
// browser for a position and sends "lat:..,lon:..,ip:.." back to the bot via
// Telegram.WebApp.sendData.  The ip field is the address this handler saw,
// taken from requestinfo, and is what the region providers look up.
//
// Assets are compiled into the binary with embed, so the bot ships as one
// file.
package webapp

import (
	"bytes"
	"embed"
	"html/template"
	"io/fs"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/yanizio/geofunnel/internal/requestinfo"
)

//go:embed assets
var assets embed.FS

var page = template.Must(template.ParseFS(assets, "assets/index.html"))

type pageData struct {
	IP   string
	Base string
}

// Handler serves the page at "<prefix>" and static files below it.  prefix
// must end in "/".
func Handler(prefix string) http.Handler {
	if !strings.HasSuffix(prefix, "/") {
		prefix += "/"
	}
	static, _ := fs.Sub(assets, "assets")
	files := http.StripPrefix(prefix, http.FileServer(http.FS(static)))

	return requestinfo.Enrich(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			w.Header().Set("Allow", "GET, HEAD")
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		rest := strings.TrimPrefix(r.URL.Path, prefix)
		if rest != "" && rest != "index.html" {
			files.ServeHTTP(w, r)
			return
		}
		renderPage(w, r, prefix)
	}))
}

func renderPage(w http.ResponseWriter, r *http.Request, prefix string) {
	data := pageData{Base: prefix}
	if info := requestinfo.FromContext(r.Context()); info != nil && info.IP != nil {
		data.IP = info.IP.String()
		zap.L().Info("web_app opened",
			zap.String("ip", data.IP),
			zap.String("browser", info.UA.Browser),
			zap.String("os", info.UA.OS),
			zap.String("device", info.UA.Device),
			zap.Bool("bot", info.UA.IsBot))
	}

	var buf bytes.Buffer
	if err := page.Execute(&buf, data); err != nil {
		zap.L().Error("web_app render", zap.Error(err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.Write(buf.Bytes())
}
