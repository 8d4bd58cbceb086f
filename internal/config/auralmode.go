package config

import "strings"

// AuralizationMode is a bitmask of the auralization components a
// sound source, receiver, or the global scene participates in.
type AuralizationMode uint32

// Auralization mode bits, per spec §6's two-letter token table.
const (
	ModeDirectSound AuralizationMode = 1 << iota
	ModeEarlyReflections
	ModeDiffuseDecay
	ModeSourceDirectivity
	ModeMediumAbsorption
	ModeTemporalVariation
	ModeScattering
	ModeDiffraction
	ModeNearField
	ModeDoppler
	ModeSpreadingLoss
	ModeTransmission
	ModeAbsorption

	ModeNone AuralizationMode = 0
)

// ModeAll is the OR of every known bit.
const ModeAll = ModeDirectSound | ModeEarlyReflections | ModeDiffuseDecay |
	ModeSourceDirectivity | ModeMediumAbsorption | ModeTemporalVariation |
	ModeScattering | ModeDiffraction | ModeNearField | ModeDoppler |
	ModeSpreadingLoss | ModeTransmission | ModeAbsorption

var modeTokens = []struct {
	token string
	bit   AuralizationMode
}{
	{"DS", ModeDirectSound},
	{"ER", ModeEarlyReflections},
	{"DD", ModeDiffuseDecay},
	{"SD", ModeSourceDirectivity},
	{"MA", ModeMediumAbsorption},
	{"TV", ModeTemporalVariation},
	{"SC", ModeScattering},
	{"DF", ModeDiffraction},
	{"NF", ModeNearField},
	{"DP", ModeDoppler},
	{"SL", ModeSpreadingLoss},
	{"TR", ModeTransmission},
	{"AB", ModeAbsorption},
}

func bitForToken(tok string) (AuralizationMode, bool) {
	for _, mt := range modeTokens {
		if mt.token == tok {
			return mt.bit, true
		}
	}
	return 0, false
}

// ParseAuralizationModeStr parses the comma-separated token list
// described in spec §6 against a starting `base` mask. Bare tokens
// (no leading operator) OR into the result exactly like "+"-prefixed
// ones — the distinction only matters when base is ModeNone, where a
// bare token list is indistinguishable from an additive one; "-"
// tokens AND-NOT out, applied after every addition. NULL/NONE clear
// to zero, DEFAULT/ALL/"*" expand to ModeAll. An empty string always
// yields ModeNone regardless of base.
func ParseAuralizationModeStr(s string, base AuralizationMode) AuralizationMode {
	s = strings.TrimSpace(s)
	if s == "" {
		return ModeNone
	}

	var bare, adds, subs AuralizationMode

	for _, raw := range strings.Split(s, ",") {
		tok := strings.TrimSpace(raw)
		if tok == "" {
			continue
		}

		op := byte(0)
		switch tok[0] {
		case '+', '-':
			op = tok[0]
			tok = tok[1:]
		}
		tok = strings.ToUpper(strings.TrimSpace(tok))

		var bit AuralizationMode
		switch tok {
		case "NULL", "NONE":
			bit = ModeNone
		case "DEFAULT", "ALL", "*":
			bit = ModeAll
		default:
			b, ok := bitForToken(tok)
			if !ok {
				continue
			}
			bit = b
		}

		switch op {
		case '+':
			adds |= bit
		case '-':
			subs |= bit
		default:
			bare |= bit
		}
	}

	return (base | bare | adds) &^ subs
}

// GetAuralizationModeStr renders a mode back to canonical comma-joined
// token form, in the modeTokens table's fixed order, so
// ParseAuralizationModeStr(GetAuralizationModeStr(m), 0) == m.
func GetAuralizationModeStr(m AuralizationMode) string {
	if m == ModeNone {
		return "NULL"
	}
	if m == ModeAll {
		return "ALL"
	}
	var parts []string
	for _, mt := range modeTokens {
		if m&mt.bit != 0 {
			parts = append(parts, mt.token)
		}
	}
	return strings.Join(parts, ",")
}
