package safety

// Kind classifies why a command was judged unsafe (spec §3 "Safety
// verdict").
type Kind string

// Kind values, per spec §3/§4.1.
const (
	KindNone              Kind = ""
	KindDangerous         Kind = "Dangerous"
	KindEscape            Kind = "Escape"
	KindInvalidPath       Kind = "InvalidPath"
	KindNetworkCommand    Kind = "NetworkCommand"
	KindPrivilegedCommand Kind = "PrivilegedCommand"
)

// Verdict is the tagged result of analyzing one command line.
type Verdict struct {
	Safe   bool
	Reason string
	Kind   Kind
}

// safe is the zero-value "nothing wrong" verdict.
func safe() Verdict { return Verdict{Safe: true} }

func unsafe(kind Kind, reason string) Verdict {
	return Verdict{Safe: false, Reason: reason, Kind: kind}
}

// ParsedCommand is the structured breakdown of a command line (spec §3
// "Parsed command").
type ParsedCommand struct {
	Base                string
	Args                []string
	Paths               []string
	HasAbsolutePath     bool
	HasDangerousPattern bool
	Issues              []string
}
