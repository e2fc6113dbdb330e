// Package locale provides the translated strings shown to chat users.
package locale

import (
	"embed"
	"fmt"
	"io"
	"io/fs"
	"path"
	"sort"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/valyala/fasttemplate"
	"go.uber.org/zap"
)

// Fallback is the locale used when a chat's locale or a key is missing.
const Fallback = "en"

//go:embed locales/*.json
var embedded embed.FS

// entry is a leaf of a locale file.
type entry struct {
	Value        string   `json:"value"`
	TemplateArgs []string `json:"template_args"`
}

// Bundle holds every loaded locale, flattened to dotted keys.
type Bundle struct {
	fallback string
	locales  map[string]map[string]entry
}

// Load reads the locales compiled into the binary.
func Load(fallback string, logger *zap.Logger) (*Bundle, error) {
	return LoadFS(embedded, "locales", fallback, logger)
}

// LoadFS reads every *.json file in dir. The file name without extension is the locale code.
func LoadFS(fsys fs.FS, dir, fallback string, logger *zap.Logger) (*Bundle, error) {
	if fallback == "" {
		fallback = Fallback
	}

	files, err := fs.Glob(fsys, path.Join(dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list locales: %w", err)
	}

	b := &Bundle{fallback: fallback, locales: make(map[string]map[string]entry, len(files))}
	for _, file := range files {
		code := strings.TrimSuffix(path.Base(file), ".json")

		raw, err := fs.ReadFile(fsys, file)
		if err != nil {
			return nil, fmt.Errorf("failed to read locale %s: %w", code, err)
		}

		var tree map[string]interface{}
		if err := sonic.Unmarshal(raw, &tree); err != nil {
			return nil, fmt.Errorf("locale %s must contain a JSON object: %w", code, err)
		}

		flat := make(map[string]entry)
		if err := flatten("", tree, flat); err != nil {
			return nil, fmt.Errorf("invalid locale %s: %w", code, err)
		}
		b.locales[code] = flat

		logger.Info("Locale loaded", zap.String("locale", code), zap.Int("keys", len(flat)))
	}

	if _, ok := b.locales[fallback]; !ok {
		return nil, fmt.Errorf("fallback locale %q not found", fallback)
	}
	return b, nil
}

func flatten(prefix string, node map[string]interface{}, out map[string]entry) error {
	for key, value := range node {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}

		child, ok := value.(map[string]interface{})
		if !ok {
			return fmt.Errorf("key %s: expected an object", full)
		}

		if text, isLeaf := child["value"].(string); isLeaf {
			e := entry{Value: text}
			if args, ok := child["template_args"].([]interface{}); ok {
				for _, a := range args {
					if s, ok := a.(string); ok {
						e.TemplateArgs = append(e.TemplateArgs, s)
					}
				}
			}
			out[full] = e
			continue
		}

		if err := flatten(full, child, out); err != nil {
			return err
		}
	}
	return nil
}

// T returns the string for key in the given locale with {arg} placeholders
// substituted. Unknown codes and missing keys fall back to the fallback locale;
// a key missing everywhere is returned as is.
func (b *Bundle) T(code, key string, args map[string]string) string {
	e, ok := b.lookup(code, key)
	if !ok {
		return key
	}
	return Format(e.Value, args)
}

// HasKey reports whether a key exists in the given locale without falling back.
func (b *Bundle) HasKey(code, key string) bool {
	_, ok := b.locales[code][key]
	return ok
}

// Has reports whether the locale code is available.
func (b *Bundle) Has(code string) bool {
	_, ok := b.locales[code]
	return ok
}

// Locales returns the available locale codes, sorted.
func (b *Bundle) Locales() []string {
	codes := make([]string, 0, len(b.locales))
	for code := range b.locales {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	return codes
}

// Fallback returns the locale used for missing codes and keys.
func (b *Bundle) Fallback() string {
	return b.fallback
}

// Resolve maps a stored chat locale to an available code.
func (b *Bundle) Resolve(code string) string {
	if b.Has(code) {
		return code
	}
	return b.fallback
}

func (b *Bundle) lookup(code, key string) (entry, bool) {
	if table, ok := b.locales[code]; ok {
		if e, ok := table[key]; ok {
			return e, true
		}
	}
	e, ok := b.locales[b.fallback][key]
	return e, ok
}

// Format substitutes {arg} placeholders. Placeholders without a value are kept verbatim.
func Format(text string, args map[string]string) string {
	if len(args) == 0 || !strings.Contains(text, "{") {
		return text
	}
	out, err := fasttemplate.ExecuteFuncStringWithErr(text, "{", "}", func(w io.Writer, tag string) (int, error) {
		if value, ok := args[tag]; ok {
			return w.Write([]byte(value))
		}
		return w.Write([]byte("{" + tag + "}"))
	})
	if err != nil {
		return text
	}
	return out
}
