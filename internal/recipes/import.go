package recipes

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/ladle-app/ladle/internal/httpkit"
)

// maxImportBody caps how much of a recipe page gets read.
const maxImportBody = 2 << 20

// Draft is a best-effort recipe extracted from a web page. The user
// reviews and edits it before it becomes a stored recipe.
type Draft struct {
	SourceURL    string   `json:"source_url"`
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
}

// Importer fetches recipe pages and extracts drafts.
type Importer struct {
	client *http.Client
	logger *slog.Logger
}

// NewImporter creates a recipe importer.
func NewImporter(userAgent string, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{
		client: httpkit.NewClient(
			httpkit.WithUserAgent(userAgent),
			httpkit.WithRetry(2, time.Second),
			httpkit.WithLogger(logger),
		),
		logger: logger,
	}
}

// Import fetches a page and extracts a recipe draft from its markup.
func (imp *Importer) Import(ctx context.Context, pageURL string) (*Draft, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "text/html")

	resp, err := imp.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", pageURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		httpkit.DrainAndClose(resp.Body, 4096)
		return nil, fmt.Errorf("fetch %s: status %d", pageURL, resp.StatusCode)
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxImportBody))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	draft := extractDraft(string(raw))
	draft.SourceURL = pageURL
	imp.logger.Debug("imported recipe page",
		"url", pageURL,
		"title", draft.Title,
		"ingredients", len(draft.Ingredients),
		"steps", len(draft.Instructions),
	)
	return draft, nil
}

// extractDraft pulls a title, ingredient lines, and instruction steps
// out of recipe page markup. It leans on the near-universal convention
// that ingredients are short <ul> items mentioning quantities and
// instructions are <ol> items.
func extractDraft(raw string) *Draft {
	draft := &Draft{}

	doc, err := html.Parse(strings.NewReader(raw))
	if err != nil {
		return draft
	}

	draft.Title = findFirst(doc, atom.H1)
	if draft.Title == "" {
		draft.Title = findFirst(doc, atom.Title)
	}

	collectListItems(doc, draft)
	return draft
}

// findFirst returns the trimmed text of the first element of the given
// kind.
func findFirst(n *html.Node, a atom.Atom) string {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return strings.TrimSpace(textContent(n))
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if t := findFirst(c, a); t != "" {
			return t
		}
	}
	return ""
}

func textContent(n *html.Node) string {
	if n.Type == html.TextNode {
		return n.Data
	}
	var b strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		b.WriteString(textContent(c))
	}
	return b.String()
}

// collectListItems walks the DOM sorting <li> text into ingredients or
// instructions by list kind and shape.
func collectListItems(n *html.Node, draft *Draft) {
	if n.Type == html.ElementNode {
		switch n.DataAtom {
		case atom.Script, atom.Style, atom.Nav, atom.Footer, atom.Header:
			return
		case atom.Ol:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Li {
					if text := normalizeLine(textContent(c)); text != "" {
						draft.Instructions = append(draft.Instructions, text)
					}
				}
			}
			return
		case atom.Ul:
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.ElementNode && c.DataAtom == atom.Li {
					text := normalizeLine(textContent(c))
					if looksLikeIngredient(text) {
						draft.Ingredients = append(draft.Ingredients, text)
					}
				}
			}
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		collectListItems(c, draft)
	}
}

func normalizeLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// ingredientUnits are tokens whose presence marks a list item as an
// ingredient line even without a leading quantity.
var ingredientUnits = map[string]bool{
	"g": true, "kg": true, "mg": true, "oz": true, "lb": true, "lbs": true,
	"ml": true, "l": true, "cup": true, "cups": true, "tbsp": true,
	"tsp": true, "tablespoon": true, "tablespoons": true, "teaspoon": true,
	"teaspoons": true, "clove": true, "cloves": true, "can": true,
	"cans": true, "pinch": true, "slice": true, "slices": true,
	"bunch": true, "stick": true, "sticks": true,
}

// looksLikeIngredient filters navigation and boilerplate out of <ul>
// items: ingredient lines are short and start with a quantity or
// mention a unit.
func looksLikeIngredient(text string) bool {
	if text == "" || len(text) > 120 {
		return false
	}
	fields := strings.Fields(strings.ToLower(text))
	if len(fields) == 0 || len(fields) > 12 {
		return false
	}
	if r, _ := utf8.DecodeRuneInString(fields[0]); unicode.IsDigit(r) || r == '½' || r == '¼' || r == '¾' {
		return true
	}
	for _, f := range fields {
		if ingredientUnits[strings.Trim(f, ".,()")] {
			return true
		}
	}
	return false
}
