package hybrid

// Strategy is how a page should be fetched
type Strategy int

const (
	// StrategyStatic means the HTTP response already holds the content
	StrategyStatic Strategy = iota

	// StrategyHybrid means scripts enrich a page whose content is present
	StrategyHybrid

	// StrategyDynamic means the content only exists after rendering
	StrategyDynamic
)

// minContentText is the visible text below which a scripted page is
// treated as an unrendered shell
const minContentText = 500

func (s Strategy) String() string {
	switch s {
	case StrategyStatic:
		return "static"
	case StrategyHybrid:
		return "hybrid"
	case StrategyDynamic:
		return "dynamic"
	default:
		return "unknown"
	}
}

// DetermineStrategy decides whether a static capture needs re-rendering
func DetermineStrategy(html string) Strategy {
	s := Analyze(html)
	switch {
	case s.Scripts == 0:
		return StrategyStatic
	case s.EmptyAppRoot, s.NoscriptWarning && s.TextLength < minContentText:
		return StrategyDynamic
	case s.Framework != "" && s.TextLength < minContentText:
		return StrategyDynamic
	case s.TextLength < minContentText/5:
		return StrategyDynamic
	}
	return StrategyHybrid
}
