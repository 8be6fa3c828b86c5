// Package bench drives allocate/traverse/release churn through chunk pools
// and reports timings, pool statistics and invariant checks.
package bench

// Kind classifies a bench object.
type Kind uint8

const (
	KindVertex Kind = iota
	KindTexture
	KindEntity
)

func (k Kind) String() string {
	switch k {
	case KindVertex:
		return "vertex"
	case KindTexture:
		return "texture"
	case KindEntity:
		return "entity"
	default:
		return "unknown"
	}
}

// Object is the payload churned through the pool: a small fixed-size record
// standing in for vertices, textures or scene entities.
type Object struct {
	ID       uint64
	Kind     Kind
	Position [3]float32
	Refs     int32
	Payload  [32]byte
}

func (o *Object) fill(id uint64) {
	o.ID = id
	o.Kind = Kind(id % 3)
	o.Position = [3]float32{float32(id), float32(id) * 0.5, -float32(id)}
	o.Refs = 1
	o.Payload[0] = byte(id)
}
