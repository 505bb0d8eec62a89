// Package codec encodes table catalog manifests.
//
// Manifests record the name of the codec that wrote them, so a catalog can
// decode manifests written under an earlier default.
package codec

// Codec turns manifests into bytes and back.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	// Name is stored in every manifest; it must never change.
	Name() string
}

// Default is the codec used for newly written manifests.
var Default Codec = GoJSON{}

// ByName returns the built-in codec that writes manifests named name.
// Indentation does not change the name, so an indented codec is returned
// in its compact form.
func ByName(name string) (Codec, bool) {
	for _, c := range []Codec{JSON{}, GoJSON{}} {
		if c.Name() == name {
			return c, true
		}
	}
	return nil, false
}
