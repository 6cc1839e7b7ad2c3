package auth

import "strings"

// Normalizer reconcilia as várias grafias com que o diretório externo pode
// materializar o mesmo utilizador convidado.
type Normalizer struct {
	guestSuffix string
}

// NewNormalizer cria um normalizador para o sufixo de contas convidadas do
// tenant (ex.: "#EXT#@entrajuda.onmicrosoft.com").
func NewNormalizer(guestSuffix string) *Normalizer {
	return &Normalizer{guestSuffix: strings.TrimSpace(guestSuffix)}
}

// Normalize remove o sufixo de conta convidada, devolvendo a forma canónica.
func (n *Normalizer) Normalize(userPrincipalName string) string {
	value := strings.TrimSpace(userPrincipalName)
	if value == "" {
		return ""
	}
	if n.guestSuffix != "" && len(value) > len(n.guestSuffix) {
		tail := value[len(value)-len(n.guestSuffix):]
		if strings.EqualFold(tail, n.guestSuffix) {
			value = value[:len(value)-len(n.guestSuffix)]
		}
	}
	return value
}

// Candidates constrói o conjunto de grafias equivalentes do utilizador.
// Contas convidadas aparecem por vezes como localpart_dominio.tld#EXT#@tenant,
// isto é, com o '@' original substituído por '_'.
func (n *Normalizer) Candidates(userPrincipalName string) []string {
	normalized := n.Normalize(userPrincipalName)
	if normalized == "" {
		return nil
	}

	seen := make(map[string]struct{}, 4)
	var candidates []string
	add := func(value string) {
		key := strings.ToLower(value)
		if _, ok := seen[key]; ok {
			return
		}
		seen[key] = struct{}{}
		candidates = append(candidates, value)
	}

	add(normalized)
	add(normalized + n.guestSuffix)

	if strings.Contains(normalized, "@") {
		guestBase := strings.ReplaceAll(normalized, "@", "_")
		add(guestBase)
		add(guestBase + n.guestSuffix)
	}

	return candidates
}
