package strutil

// CmpFold reports whether a and b are equal under ASCII case-folding. It
// never allocates, which matters as it sits on the header lookup path.
func CmpFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}

	for i := 0; i < len(a); i++ {
		if a[i] == b[i] {
			continue
		}

		if lower := a[i] | 0x20; lower < 'a' || lower > 'z' || lower != b[i]|0x20 {
			return false
		}
	}

	return true
}

// TrimWS strips leading and trailing spaces and horizontal tabs.
func TrimWS(str string) string {
	return LStripWS(RStripWS(str))
}

func LStripWS(str string) string {
	for i := 0; i < len(str); i++ {
		switch str[i] {
		case ' ', '\t':
		default:
			return str[i:]
		}
	}

	return ""
}

func RStripWS(str string) string {
	for i := len(str); i > 0; i-- {
		switch str[i-1] {
		case ' ', '\t':
		default:
			return str[:i]
		}
	}

	return ""
}
