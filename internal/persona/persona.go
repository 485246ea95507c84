// Package persona carica e normalizza i personaggi che partecipano alla discussione.
//
// Il caricamento è una pipeline in tre stadi, ognuno totale:
//
//	ReadFile  (validate-file)    -> voci grezze oppure un errore classificato
//	Normalize (validate-entries) -> Persona complete + warning per le voci scartate
//	Resolve   (fallback)         -> le Persona valide, oppure i 4 personaggi predefiniti
//
// Load compone i tre stadi e non fallisce mai.
package persona

import (
	"encoding/json"
	"sort"
	"strings"
)

const (
	DefaultEmoji = "💬"
	DefaultColor = "bright_white"
	// Placeholder usato per i campi narrativi non impostati
	Unset = "未设定"

	defaultIdentity = "请以真实、拟人化的语气表达你的观点"
)

// Persona è un personaggio immutabile dopo il caricamento
type Persona struct {
	Name  string `json:"name"`
	Title string `json:"title"`
	Emoji string `json:"emoji"`
	Color string `json:"color"`
	Style string `json:"style"`

	Identity      string `json:"身份设定"`
	Personality   string `json:"性格特点"`
	Hobbies       string `json:"喜好"`
	SpeakingStyle string `json:"说话风格"`
	Expertise     string `json:"专业领域"`
	Catchphrase   string `json:"口头禅"`
	Backstory     string `json:"背景故事"`

	// Chiavi sconosciute conservate così come sono
	Extra map[string]string `json:"-"`
}

// field descrive una chiave riconosciuta e i suoi alias
type field struct {
	key       string
	aliases   []string
	narrative bool
	get       func(*Persona) *string
}

var fields = []field{
	{key: "name", get: func(p *Persona) *string { return &p.Name }},
	{key: "title", get: func(p *Persona) *string { return &p.Title }},
	{key: "emoji", get: func(p *Persona) *string { return &p.Emoji }},
	{key: "color", get: func(p *Persona) *string { return &p.Color }},
	{key: "style", get: func(p *Persona) *string { return &p.Style }},
	{key: "身份设定", aliases: []string{"identity", "role"}, narrative: true, get: func(p *Persona) *string { return &p.Identity }},
	{key: "性格特点", aliases: []string{"personality", "traits"}, narrative: true, get: func(p *Persona) *string { return &p.Personality }},
	{key: "喜好", aliases: []string{"hobbies"}, narrative: true, get: func(p *Persona) *string { return &p.Hobbies }},
	{key: "说话风格", aliases: []string{"speaking_style"}, narrative: true, get: func(p *Persona) *string { return &p.SpeakingStyle }},
	{key: "专业领域", aliases: []string{"expertise"}, narrative: true, get: func(p *Persona) *string { return &p.Expertise }},
	{key: "口头禅", aliases: []string{"catchphrase"}, narrative: true, get: func(p *Persona) *string { return &p.Catchphrase }},
	{key: "背景故事", aliases: []string{"backstory"}, narrative: true, get: func(p *Persona) *string { return &p.Backstory }},
}

// DisplayName restituisce il nome decorato usato come speaker.
// Formato: "{emoji} [{style|color}] {name} - {title}".
func (p Persona) DisplayName() string {
	var b strings.Builder
	if p.Emoji != "" {
		b.WriteString(p.Emoji)
		b.WriteString(" ")
	}
	if tag := p.styleTag(); tag != "" {
		b.WriteString("[")
		b.WriteString(tag)
		b.WriteString("] ")
	}
	b.WriteString(p.Name)
	b.WriteString(" - ")
	b.WriteString(p.Title)
	return strings.TrimSpace(b.String())
}

func (p Persona) styleTag() string {
	if p.Style != "" {
		return p.Style
	}
	return p.Color
}

// SystemPrompt restituisce le istruzioni di sistema del personaggio
func (p Persona) SystemPrompt() string {
	return "你是" + p.Name + "，" + p.description()
}

func (p Persona) description() string {
	var b strings.Builder

	if set(p.Identity) {
		b.WriteString(p.Identity)
	} else {
		b.WriteString(defaultIdentity)
	}

	parts := []struct {
		value  string
		format func(string) string
	}{
		{p.Personality, func(v string) string { return "你的性格特点：" + v + "。" }},
		{p.Hobbies, func(v string) string { return "你的兴趣喜好：" + v + "。" }},
		{p.SpeakingStyle, func(v string) string { return "你的说话风格：" + v + "。" }},
		{p.Expertise, func(v string) string { return "你的专业领域：" + v + "。" }},
		{p.Catchphrase, func(v string) string { return "你的口头禅是：“" + v + "”请自然融入对话。" }},
		{p.Backstory, func(v string) string { return "你的背景故事：" + v + "。" }},
	}
	for _, part := range parts {
		if set(part.value) {
			b.WriteString(part.format(part.value))
		}
	}

	return b.String()
}

func set(v string) bool {
	v = strings.TrimSpace(v)
	return v != "" && v != Unset
}

// ToMap restituisce la rappresentazione a chiavi del file di configurazione
func (p Persona) ToMap() map[string]string {
	out := make(map[string]string, len(fields)+len(p.Extra))
	for k, v := range p.Extra {
		out[k] = v
	}
	for _, f := range fields {
		if v := *f.get(&p); v != "" {
			out[f.key] = v
		}
	}
	return out
}

// MarshalJSON serializza la persona includendo le chiavi extra
func (p Persona) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.ToMap())
}

// UnmarshalJSON accetta sia le chiavi cinesi che gli alias inglesi.
// Non applica default: per quello usare Normalize.
func (p *Persona) UnmarshalJSON(data []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = fromMap(raw)
	return nil
}

// Names restituisce i nomi semplici dei personaggi
func Names(personas []Persona) []string {
	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.Name
	}
	return names
}

// DisplayNames restituisce i nomi decorati dei personaggi
func DisplayNames(personas []Persona) []string {
	names := make([]string, len(personas))
	for i, p := range personas {
		names[i] = p.DisplayName()
	}
	return names
}

// ExtraKeys restituisce le chiavi extra in ordine stabile
func (p Persona) ExtraKeys() []string {
	keys := make([]string, 0, len(p.Extra))
	for k := range p.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
