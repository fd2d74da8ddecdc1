// internal/codegen/emitter.go
package codegen

import (
	"bytes"
	"embed"
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"text/template"
	"unicode"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/xkilldash9x/uiforge/api/schemas"
	"github.com/xkilldash9x/uiforge/internal/config"
	"github.com/xkilldash9x/uiforge/internal/selector"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

//go:embed templates/*.tmpl
var templateFS embed.FS

var templates = template.Must(template.New("codegen").Funcs(template.FuncMap{
	"q":       jsQuote,
	"oneline": oneLine,
}).ParseFS(templateFS, "templates/*.tmpl"))

const (
	defaultTimeoutMs = 10000
	suiteTimeoutMs   = 60000
)

// Manifest lists the files written by one emission, relative to Dir.
type Manifest struct {
	Dir   string   `json:"dir"`
	Files []string `json:"files"`
}

// Emitter renders a ValidatedPlan into a runnable Jest + Puppeteer project.
type Emitter struct {
	logger    *zap.Logger
	fs        afero.Fs
	dir       string
	suiteName string
}

// NewEmitter creates an Emitter writing under cfg.Dir.
func NewEmitter(logger *zap.Logger, fs afero.Fs, cfg config.OutputConfig) *Emitter {
	suite := strings.TrimSpace(cfg.SuiteName)
	if suite == "" {
		suite = "ui-tests"
	}
	return &Emitter{
		logger:    logger.Named("codegen"),
		fs:        fs,
		dir:       cfg.Dir,
		suiteName: suite,
	}
}

// -- Template data --

type suiteData struct {
	SuiteName   string
	Requirement string
	Tests       []testCase
}

type testCase struct {
	Name        string
	Description string
	Skip        bool
	Comments    []string
	Lines       []string
}

type pageObject struct {
	ClassName   string
	Path        string
	Description string
	Selectors   []selectorEntry
}

type selectorEntry struct {
	Role    string
	Locator string
}

type helperData struct {
	BaseURL   string
	TimeoutMs int
}

type packageData struct {
	PackageName string
	Description string
}

// Emit writes the project. Files are rewritten on every call.
func (e *Emitter) Emit(plan *schemas.ValidatedPlan) (*Manifest, error) {
	if plan == nil {
		return nil, fmt.Errorf("cannot emit a nil plan")
	}
	m := &Manifest{Dir: e.dir}
	slug := Slug(e.suiteName)

	suite, err := buildSuite(e.suiteName, plan)
	if err != nil {
		return nil, err
	}
	if err := e.render(m, path.Join("tests", slug+".test.js"), "test-suite.js.tmpl", suite); err != nil {
		return nil, err
	}
	if err := e.render(m, "pages/BasePage.js", "base-page.js.tmpl", nil); err != nil {
		return nil, err
	}
	for _, po := range buildPageObjects(plan) {
		if err := e.render(m, path.Join("pages", po.ClassName+".js"), "page-object.js.tmpl", po); err != nil {
			return nil, err
		}
	}
	if err := e.render(m, "utils/test-helpers.js", "test-helpers.js.tmpl", helperData{BaseURL: plan.BaseURL, TimeoutMs: defaultTimeoutMs}); err != nil {
		return nil, err
	}
	if err := e.render(m, "jest.config.js", "jest.config.js.tmpl", map[string]int{"SuiteTimeoutMs": suiteTimeoutMs}); err != nil {
		return nil, err
	}
	if err := e.render(m, "package.json", "package.json.tmpl", packageData{
		PackageName: slug,
		Description: "UI tests generated for: " + oneLine(plan.Requirement),
	}); err != nil {
		return nil, err
	}

	selectors := plan.Selectors
	if selectors == nil {
		selectors = schemas.SelectorMap{}
	}
	docs := []struct {
		name string
		v    any
	}{
		{"test-data.json", buildTestData(plan)},
		{"selectors.json", selectors},
		{"validated-plan.json", plan},
	}
	for _, d := range docs {
		if err := schemas.WriteDocument(e.fs, filepath.Join(e.dir, d.name), d.v); err != nil {
			return nil, err
		}
		m.Files = append(m.Files, d.name)
	}

	sort.Strings(m.Files)
	e.logger.Info("Test project emitted.", zap.String("dir", e.dir), zap.Int("files", len(m.Files)))
	return m, nil
}

func (e *Emitter) render(m *Manifest, rel, tmpl string, data any) error {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, tmpl, data); err != nil {
		return fmt.Errorf("failed to render %s: %w", rel, err)
	}
	full := filepath.Join(e.dir, filepath.FromSlash(rel))
	if err := e.fs.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", rel, err)
	}
	if err := afero.WriteFile(e.fs, full, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to write %s: %w", rel, err)
	}
	m.Files = append(m.Files, rel)
	return nil
}

// -- Builders --

func buildSuite(name string, plan *schemas.ValidatedPlan) (suiteData, error) {
	data := suiteData{SuiteName: name, Requirement: plan.Requirement}
	for _, sc := range plan.Scenarios {
		tc := testCase{
			Name:        sc.Name,
			Description: oneLine(sc.Description),
			Skip:        !sc.Validated,
		}
		if tc.Skip {
			tc.Comments = append(tc.Comments, fmt.Sprintf("Not validated after %d attempt(s).", sc.Attempts))
			for _, msg := range sc.Errors {
				tc.Comments = append(tc.Comments, oneLine(msg))
			}
		}
		for i, st := range sc.Steps {
			lines, err := StepLines(st)
			if err != nil {
				return suiteData{}, fmt.Errorf("scenario %q step %d: %w", sc.Name, i+1, err)
			}
			tc.Lines = append(tc.Lines, lines...)
		}
		data.Tests = append(data.Tests, tc)
	}
	return data, nil
}

// buildPageObjects groups selectors by the page each validated scenario ended
// on. Pages known from the analysis get a page object even without selectors.
func buildPageObjects(plan *schemas.ValidatedPlan) []pageObject {
	byPath := map[string]schemas.SelectorMap{}
	names := map[string]string{}
	descriptions := map[string]string{}

	if plan.Analysis != nil {
		for _, p := range plan.Analysis.Pages {
			key := normalizePath(p.Path)
			if _, ok := byPath[key]; !ok {
				byPath[key] = schemas.SelectorMap{}
			}
			if p.Name != "" {
				names[key] = p.Name
			}
			descriptions[key] = oneLine(p.Description)
		}
	}
	for _, sc := range plan.Scenarios {
		if !sc.Validated || len(sc.Selectors) == 0 {
			continue
		}
		key := scenarioPage(sc)
		if byPath[key] == nil {
			byPath[key] = schemas.SelectorMap{}
		}
		selector.MergeMaps(byPath[key], sc.Selectors)
	}

	taken := map[string]int{}
	var out []pageObject
	paths := make([]string, 0, len(byPath))
	for p := range byPath {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	for _, p := range paths {
		class := ClassName(names[p], p)
		taken[class]++
		if n := taken[class]; n > 1 {
			class = fmt.Sprintf("%s%d", strings.TrimSuffix(class, "Page"), n) + "Page"
		}
		po := pageObject{ClassName: class, Path: p, Description: descriptions[p]}
		roles := make([]string, 0, len(byPath[p]))
		for role := range byPath[p] {
			roles = append(roles, role)
		}
		sort.Strings(roles)
		for _, role := range roles {
			po.Selectors = append(po.Selectors, selectorEntry{Role: role, Locator: PuppeteerSelector(byPath[p][role])})
		}
		out = append(out, po)
	}
	return out
}

func scenarioPage(sc schemas.Scenario) string {
	if sc.LastObservation != nil && sc.LastObservation.URL != "" {
		if u, err := url.Parse(sc.LastObservation.URL); err == nil {
			return normalizePath(u.Path)
		}
	}
	if n := len(sc.ExpectedPages); n > 0 {
		return normalizePath(sc.ExpectedPages[n-1])
	}
	return "/"
}

func normalizePath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimSuffix(p, "/")
}

type inputEntry struct {
	Selector string `json:"selector"`
	Value    string `json:"value"`
}

// buildTestData collects the values typed by each scenario.
func buildTestData(plan *schemas.ValidatedPlan) map[string]any {
	scenarios := map[string][]inputEntry{}
	for _, sc := range plan.Scenarios {
		inputs := []inputEntry{}
		for _, st := range sc.Steps {
			if st.Action == schemas.ActionType {
				inputs = append(inputs, inputEntry{Selector: st.Target, Value: st.Value})
			}
		}
		scenarios[sc.Name] = inputs
	}
	return map[string]any{
		"baseUrl":   plan.BaseURL,
		"scenarios": scenarios,
	}
}

// -- Naming --

// ClassName derives a page object class name from a page name or, failing
// that, its path. "/" becomes HomePage.
func ClassName(name, pagePath string) string {
	base := pascalCase(name)
	if base == "" {
		base = pascalCase(pagePath)
	}
	if base == "" {
		base = "Home"
	}
	if unicode.IsDigit(rune(base[0])) {
		base = "Page" + base
	}
	if !strings.HasSuffix(base, "Page") {
		base += "Page"
	}
	return base
}

func pascalCase(s string) string {
	var b strings.Builder
	for _, w := range strings.FieldsFunc(s, func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	}) {
		b.WriteString(strings.ToUpper(w[:1]))
		b.WriteString(w[1:])
	}
	return b.String()
}

// Slug lowercases s and joins its alphanumeric runs with dashes.
func Slug(s string) string {
	words := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r < unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r)))
	})
	if len(words) == 0 {
		return "ui-tests"
	}
	return strings.Join(words, "-")
}

func jsQuote(s string) (string, error) {
	return json.MarshalToString(s)
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
