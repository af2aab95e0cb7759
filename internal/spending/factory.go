package spending

import "fmt"

// NewStore selects the spending backend: "memory" for local runs and tests,
// "supabase" for the hosted document store.
func NewStore(backend, supabaseURL, supabaseKey, table string) (Store, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "supabase":
		return NewSupabaseStore(supabaseURL, supabaseKey, table)
	default:
		return nil, fmt.Errorf("unknown spending backend %q", backend)
	}
}
