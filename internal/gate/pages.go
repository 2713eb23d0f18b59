package gate

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Page is the data rendered into every gate response page.
type Page struct {
	Status   int
	Title    string
	Message  string
	Code     string
	MainURL  string
	LoginURL string
}

var pageTemplate = template.Must(template.New("page").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>{{.Title}}</title>
<style>
body{font-family:system-ui,sans-serif;background:#0f172a;color:#e2e8f0;display:flex;min-height:100vh;align-items:center;justify-content:center;margin:0}
main{max-width:32rem;padding:2rem;text-align:center}
h1{font-size:1.5rem;margin-bottom:.5rem}
code{background:#1e293b;padding:.1rem .4rem;border-radius:.25rem}
a{color:#38bdf8;margin:0 .5rem}
</style>
</head>
<body>
<main>
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
{{if .Code}}<p><code>{{.Code}}</code></p>{{end}}
<p>{{if .MainURL}}<a href="{{.MainURL}}">Main site</a>{{end}}{{if .LoginURL}}<a href="{{.LoginURL}}">Sign in</a>{{end}}</p>
</main>
</body>
</html>
`))

func renderPage(c *gin.Context, page Page) {
	writePage(c.Writer, page)
	c.Abort()
}

func writePage(w http.ResponseWriter, page Page) {
	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, page); err != nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(page.Status)
	_, _ = w.Write(buf.Bytes())
}

func unknownHostPage(mainURL string) Page {
	return Page{
		Status:  http.StatusBadRequest,
		Title:   "Unknown site",
		Message: "This address is not served by the portal.",
		MainURL: mainURL,
	}
}

func signInPage(mainURL, loginURL string) Page {
	return Page{
		Status:   http.StatusUnauthorized,
		Title:    "Access denied",
		Message:  "Access denied, please sign in.",
		MainURL:  mainURL,
		LoginURL: loginURL,
	}
}

func rejectedPage(code, mainURL, loginURL string) Page {
	return Page{
		Status:   http.StatusUnauthorized,
		Title:    "Access denied",
		Message:  "Your session could not be verified, please sign in again.",
		Code:     code,
		MainURL:  mainURL,
		LoginURL: loginURL,
	}
}

func forbiddenPage(reason, mainURL string) Page {
	return Page{
		Status:  http.StatusForbidden,
		Title:   "Access restricted",
		Message: reason,
		MainURL: mainURL,
	}
}

func unavailablePage(mainURL string) Page {
	return Page{
		Status:  http.StatusInternalServerError,
		Title:   "Service unavailable",
		Message: "Access could not be verified right now, please try again shortly.",
		MainURL: mainURL,
	}
}

func rateLimitedPage(mainURL string) Page {
	return Page{
		Status:  http.StatusTooManyRequests,
		Title:   "Too many requests",
		Message: "Please slow down and try again in a moment.",
		MainURL: mainURL,
	}
}

func badGatewayPage(mainURL string) Page {
	return Page{
		Status:  http.StatusBadGateway,
		Title:   "Site unavailable",
		Message: "The requested site is not reachable right now.",
		MainURL: mainURL,
	}
}
