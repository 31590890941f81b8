package proto

import "strings"

// ParseModeList decodes the INI-like ModeList payload into ordered,
// de-duplicated "<id> - <name>" strings.
func ParseModeList(data []byte) []string {
	text := latin1String(data)

	if nul := strings.IndexByte(text, 0x00); nul >= 0 {
		text = text[:nul]
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")

	var result []string
	var sectionID, nameEn, name string
	inModeSection := false

	flush := func() {
		if !inModeSection {
			return
		}
		n := nameEn
		if n == "" {
			n = name
		}
		n = strings.TrimSpace(n)
		if n != "" {
			prefix := ""
			if sectionID != "" {
				prefix = sectionID + " - "
			}
			result = append(result, prefix+n)
		}
		sectionID, nameEn, name = "", "", ""
	}

	for _, rawLine := range strings.Split(text, "\n") {
		line := strings.TrimSpace(rawLine)
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, ";") {
			continue
		}
		if strings.HasPrefix(line, "<!--") {
			break
		}
		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			flush()
			inModeSection = strings.HasPrefix(line, "[Mode-")
			if inModeSection {
				if l := strings.IndexByte(line, '{'); l >= 0 {
					if r := strings.IndexByte(line, '}'); r > l {
						sectionID = strings.TrimSpace(line[l+1 : r])
					}
				}
			}
			continue
		}
		if !inModeSection {
			continue
		}
		eq := strings.IndexByte(line, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(line[:eq])
		value := strings.TrimSpace(line[eq+1:])
		switch strings.ToLower(key) {
		case "modename_en":
			nameEn = value
		case "modename":
			name = value
		}
	}
	flush()

	seen := make(map[string]bool, len(result))
	unique := make([]string, 0, len(result))
	for _, n := range result {
		k := strings.TrimSpace(n)
		if k == "" || seen[k] {
			continue
		}
		seen[k] = true
		unique = append(unique, k)
	}
	return unique
}

func latin1String(b []byte) string {
	out := make([]rune, len(b))
	for i, c := range b {
		out[i] = rune(c)
	}
	return string(out)
}
