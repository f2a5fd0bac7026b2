package patch

const (
	OperationAdd     = "add"
	OperationReplace = "replace"
)

type Operation struct {
	Op    string `json:"op"`
	Path  string `json:"path"`
	Value any    `json:"value,omitempty"`
}

func Add(path string, value any) Operation {
	return Operation{Op: OperationAdd, Path: path, Value: value}
}

func Replace(path string, value any) Operation {
	return Operation{Op: OperationReplace, Path: path, Value: value}
}

// Guard restricts which pointers a patch may touch. Paths in Once may only be
// written while they are still unset.
type Guard struct {
	Allowed []string
	Once    []string
}

func (g Guard) allowedSet() map[string]bool {
	return toSet(g.Allowed)
}

func (g Guard) onceSet() map[string]bool {
	return toSet(g.Once)
}

func toSet(paths []string) map[string]bool {
	out := make(map[string]bool, len(paths))
	for _, p := range paths {
		out[p] = true
	}
	return out
}
