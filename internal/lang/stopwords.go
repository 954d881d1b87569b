package lang

func stopwordSet(words ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

var commonStopwords = []string{
	"get", "set", "is", "has", "do", "the", "a", "an", "of", "to", "for",
}
