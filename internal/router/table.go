// Package router dispatches requests through an ordered list of rules.
// The first rule whose matcher accepts a request handles it; later rules
// are never consulted.
package router

import (
	"errors"
	"io"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// Matcher decides whether a rule applies to a request
type Matcher func(r *http.Request) bool

// Rule pairs a matcher with the handler that answers matching requests
type Rule struct {
	Name    string
	Match   Matcher
	Handler gin.HandlerFunc
}

// Table is an ordered, immutable rule list
type Table struct {
	rules  []Rule
	logger *zap.Logger
}

// NewTable creates a table that evaluates rules in the given order
func NewTable(logger *zap.Logger, rules ...Rule) *Table {
	return &Table{
		rules:  append([]Rule(nil), rules...),
		logger: logger.Named("router"),
	}
}

// Names lists the rule names in evaluation order
func (t *Table) Names() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Name
	}
	return names
}

// Dispatch hands the request to the first matching rule. A request that no
// rule accepts gets a bare 404.
func (t *Table) Dispatch(c *gin.Context) {
	for _, rule := range t.rules {
		if !rule.Match(c.Request) {
			continue
		}
		c.Set(middleware.RuleKey, rule.Name)
		rule.Handler(c)
		return
	}
	t.logger.Debug("No rule matched", zap.String("method", c.Request.Method), zap.String("path", c.Request.URL.Path))
	c.Set(middleware.RuleKey, "unmatched")
	c.AbortWithStatus(http.StatusNotFound)
}

// Register installs the table as the only route on the engine
func (t *Table) Register(engine *gin.Engine) {
	engine.Any("/*path", t.Dispatch)
	engine.NoRoute(t.Dispatch)
	engine.NoMethod(t.Dispatch)
}

// IsRead reports whether the method is GET or HEAD
func IsRead(r *http.Request) bool {
	return r.Method == http.MethodGet || r.Method == http.MethodHead
}

// PathHasPrefix reports whether p equals prefix or lies beneath it
func PathHasPrefix(p, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

// Prefix forwards every request under prefix, whatever its method, to h
func Prefix(name, prefix string, h http.Handler) Rule {
	return Rule{
		Name: name,
		Match: func(r *http.Request) bool {
			return PathHasPrefix(r.URL.Path, prefix)
		},
		Handler: func(c *gin.Context) {
			h.ServeHTTP(c.Writer, c.Request)
		},
	}
}

// Exact matches a single path for the listed methods, or any method when
// none are listed.
func Exact(name, p string, h gin.HandlerFunc, methods ...string) Rule {
	return Rule{
		Name: name,
		Match: func(r *http.Request) bool {
			if r.URL.Path != p {
				return false
			}
			if len(methods) == 0 {
				return true
			}
			for _, m := range methods {
				if r.Method == m {
					return true
				}
			}
			return false
		},
		Handler: h,
	}
}

// Static serves files from fsys for read requests. It claims a request when
// the file exists, or when the path lies inside assetPrefix, so a missing
// bundle asset is a 404 rather than the application shell. Any other path,
// dotted client routes such as /profile/john.doe included, is left to the
// rules that follow. An empty assetPrefix claims existing files only.
func Static(name string, fsys fs.FS, assetPrefix string, logger *zap.Logger) Rule {
	assetPrefix = strings.TrimSuffix(assetPrefix, "/")
	return Rule{
		Name: name,
		Match: func(r *http.Request) bool {
			if !IsRead(r) {
				return false
			}
			if assetPrefix != "" && strings.HasPrefix(r.URL.Path, assetPrefix+"/") {
				return true
			}
			return isFile(fsys, fsPath(r.URL.Path))
		},
		Handler: func(c *gin.Context) {
			if err := serveFile(c, fsys, fsPath(c.Request.URL.Path)); err != nil {
				if !errors.Is(err, fs.ErrNotExist) {
					logger.Warn("Failed to serve static file", zap.String("path", c.Request.URL.Path), zap.Error(err))
				}
				c.AbortWithStatus(http.StatusNotFound)
			}
		},
	}
}

// SPA answers every read request with the index document and status 200 so
// the client-side router can resolve the path.
func SPA(name string, fsys fs.FS, index string, logger *zap.Logger) Rule {
	return Rule{
		Name:  name,
		Match: IsRead,
		Handler: func(c *gin.Context) {
			if err := serveFile(c, fsys, index); err != nil {
				logger.Error("Failed to serve index document", zap.String("index", index), zap.Error(err))
				c.AbortWithStatus(http.StatusNotFound)
			}
		},
	}
}

// NotFound matches everything and answers 404. It belongs at the end.
func NotFound(name string) Rule {
	return Rule{
		Name:  name,
		Match: func(*http.Request) bool { return true },
		Handler: func(c *gin.Context) {
			c.AbortWithStatus(http.StatusNotFound)
		},
	}
}

// fsPath maps a URL path onto a valid fs.FS name
func fsPath(urlPath string) string {
	p := strings.TrimPrefix(path.Clean("/"+urlPath), "/")
	if p == "" {
		return "."
	}
	return p
}

func isFile(fsys fs.FS, name string) bool {
	info, err := fs.Stat(fsys, name)
	return err == nil && info.Mode().IsRegular()
}

func serveFile(c *gin.Context, fsys fs.FS, name string) error {
	f, err := fsys.Open(name)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return fs.ErrNotExist
	}

	rs, ok := f.(io.ReadSeeker)
	if !ok {
		data, err := io.ReadAll(f)
		if err != nil {
			return err
		}
		ctype := mime.TypeByExtension(path.Ext(name))
		if ctype == "" {
			ctype = http.DetectContentType(data)
		}
		c.Data(http.StatusOK, ctype, data)
		return nil
	}

	http.ServeContent(c.Writer, c.Request, name, info.ModTime(), rs)
	return nil
}
