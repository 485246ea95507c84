package persona

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

var (
	ErrFileNotFound = errors.New("characters file not found")
	ErrMalformed    = errors.New("malformed characters file")
	ErrNoCharacters = errors.New("no characters defined")
)

// Source indica da dove provengono le persona risolte
type Source string

const (
	SourceFile     Source = "file"
	SourceRequest  Source = "request"
	SourceDefaults Source = "defaults"
)

// LoadResult è l'esito completo del caricamento
type LoadResult struct {
	Personas []Persona
	Source   Source
	Path     string
	// Motivo del fallback ai default, se avvenuto
	FallbackReason error
	Warnings       []string
}

// Load risolve le persona dal file indicato, ricadendo sui default.
// Non restituisce mai una lista vuota.
func Load(path string) LoadResult {
	result := resolveFile(path)

	for _, w := range result.Warnings {
		log.Warn().Str("path", path).Msg(w)
	}
	if result.FallbackReason != nil {
		log.Warn().
			Err(result.FallbackReason).
			Str("path", path).
			Int("personas", len(result.Personas)).
			Msg("Using default personas")
	}

	return result
}

func resolveFile(path string) LoadResult {
	result := LoadResult{Path: path}

	entries, err := ReadFile(path)
	if err != nil {
		result.FallbackReason = err
		result.Personas, result.Source = Resolve(nil)
		return result
	}

	personas, warnings := Normalize(entries)
	result.Warnings = warnings
	result.Personas, result.Source = Resolve(personas)
	if result.Source == SourceDefaults {
		result.FallbackReason = fmt.Errorf("%w: %s has no valid entries", ErrNoCharacters, path)
	} else {
		result.Source = SourceFile
	}

	return result
}

// FromRequest normalizza le persona fornite dal chiamante; se nessuna è valida
// ricade sul file indicato (e quindi sui default).
func FromRequest(entries []map[string]any, fallbackPath string) LoadResult {
	if len(entries) == 0 {
		return Load(fallbackPath)
	}

	raw := make([]any, len(entries))
	for i, e := range entries {
		raw[i] = e
	}

	personas, warnings := Normalize(raw)
	for _, w := range warnings {
		log.Warn().Msg(w)
	}
	if len(personas) == 0 {
		result := Load(fallbackPath)
		result.Warnings = append(warnings, result.Warnings...)
		return result
	}

	return LoadResult{Personas: personas, Source: SourceRequest, Warnings: warnings}
}

// ReadFile legge il file e restituisce le voci grezze.
// Accetta {"characters": [...]} oppure un array al primo livello.
func ReadFile(path string) ([]any, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("%w: empty path", ErrFileNotFound)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrFileNotFound, err)
	}

	return Parse(data)
}

// Parse valida il contenuto JSON di un file di personaggi
func Parse(data []byte) ([]any, error) {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	var entries []any
	switch v := doc.(type) {
	case map[string]any:
		list, ok := v["characters"].([]any)
		if !ok {
			return nil, fmt.Errorf("%w: missing \"characters\" list", ErrMalformed)
		}
		entries = list
	case []any:
		entries = v
	default:
		return nil, fmt.Errorf("%w: unexpected top-level %T", ErrMalformed, doc)
	}

	if len(entries) == 0 {
		return nil, ErrNoCharacters
	}
	return entries, nil
}

// Normalize valida le singole voci. Le voci non oggetto o prive di name/title
// vengono scartate con un warning; le altre ricevono i valori di default.
func Normalize(entries []any) ([]Persona, []string) {
	personas := make([]Persona, 0, len(entries))
	var warnings []string

	for i, entry := range entries {
		raw, ok := entry.(map[string]any)
		if !ok {
			warnings = append(warnings, fmt.Sprintf("character #%d skipped: not an object (%T)", i+1, entry))
			continue
		}

		p := fromMap(raw)
		if p.Name == "" || p.Title == "" {
			warnings = append(warnings, fmt.Sprintf("character #%d skipped: missing name or title", i+1))
			continue
		}

		personas = append(personas, withDefaults(p))
	}

	return personas, warnings
}

// Resolve restituisce le persona valide, o i default se la lista è vuota
func Resolve(personas []Persona) ([]Persona, Source) {
	if len(personas) == 0 {
		return Defaults(), SourceDefaults
	}
	return personas, SourceFile
}

func withDefaults(p Persona) Persona {
	if p.Emoji == "" {
		p.Emoji = DefaultEmoji
	}
	if p.Color == "" {
		p.Color = DefaultColor
	}
	if p.Style == "" {
		p.Style = "bold " + p.Color
	}
	for _, f := range fields {
		if f.narrative && *f.get(&p) == "" {
			*f.get(&p) = Unset
		}
	}
	return p
}

func fromMap(raw map[string]any) Persona {
	var p Persona
	known := make(map[string]bool)

	for _, f := range fields {
		for _, key := range append([]string{f.key}, f.aliases...) {
			known[key] = true
			if *f.get(&p) != "" {
				continue
			}
			if v := stringify(raw[key]); v != "" {
				*f.get(&p) = v
			}
		}
	}

	for k, v := range raw {
		if known[k] {
			continue
		}
		if s := stringify(v); s != "" {
			if p.Extra == nil {
				p.Extra = make(map[string]string)
			}
			p.Extra[k] = s
		}
	}

	return p
}

func stringify(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val)
		}
		return string(b)
	}
}
