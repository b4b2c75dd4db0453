package persona

import (
	"fmt"
	"strings"

	"github.com/BurntSushi/toml"
)

type fileDocument struct {
	Personas []Persona `toml:"persona"`
}

// LoadFile reads [[persona]] tables from a TOML file. Entries override the
// built-in seed by id; new ids are appended.
func LoadFile(path string, base []Persona) ([]Persona, error) {
	var doc fileDocument
	meta, err := toml.DecodeFile(path, &doc)
	if err != nil {
		return nil, fmt.Errorf("decode persona file %s: %w", path, err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return nil, fmt.Errorf("persona file %s: unknown keys %v", path, undecoded)
	}
	return merge(base, doc.Personas)
}

func merge(base, overrides []Persona) ([]Persona, error) {
	out := append([]Persona(nil), base...)
	for i, p := range overrides {
		p.ID = strings.TrimSpace(p.ID)
		if p.ID == "" {
			return nil, fmt.Errorf("persona #%d: id is required", i+1)
		}
		if strings.TrimSpace(p.SystemInstruction) == "" {
			return nil, fmt.Errorf("persona %s: system_instruction is required", p.ID)
		}

		replaced := false
		for j := range out {
			if out[j].ID == p.ID {
				out[j] = p
				replaced = true
				break
			}
		}
		if !replaced {
			out = append(out, p)
		}
	}
	return out, nil
}
