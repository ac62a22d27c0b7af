package security

import (
	"sort"
	"strings"

	"github.com/tessworth/routinely/pkg/interp"
	"github.com/tessworth/routinely/pkg/routine"
)

type Redactor struct {
	Secrets []string
}

// NewRedactor collects the supplied values of secret-marked parameters.
func NewRedactor(params []routine.Parameter, values map[string]any) *Redactor {
	var secretValues []string
	for _, p := range params {
		if !p.Secret {
			continue
		}
		if val, ok := values[p.Name]; ok {
			if s := interp.Stringify(val); s != "" {
				secretValues = append(secretValues, s)
			}
		}
	}
	return &Redactor{
		Secrets: secretValues,
	}
}

func (r *Redactor) Redact(s string) string {
	if r == nil || len(r.Secrets) == 0 {
		return s
	}

	// Sort secrets by length in descending order so longer secrets are
	// replaced before their substrings.
	secrets := make([]string, len(r.Secrets))
	copy(secrets, r.Secrets)
	sort.Slice(secrets, func(i, j int) bool {
		return len(secrets[i]) > len(secrets[j])
	})

	for _, secret := range secrets {
		if secret == "" {
			continue
		}
		s = strings.ReplaceAll(s, secret, "********")
	}
	return s
}
