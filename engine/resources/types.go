package resources

import (
	"encoding/hex"
	"fmt"

	"github.com/spaolacci/murmur3"
)

// StringID is the 64-bit hash of a resource or type name.
type StringID uint64

// HashString hashes s into a StringID. Hashing only happens when names
// enter the system (package manifests, tools); the hot paths carry ids.
func HashString(s string) StringID {
	return StringID(murmur3.Sum64([]byte(s)))
}

func (s StringID) String() string {
	return fmt.Sprintf("%016x", uint64(s))
}

/** @brief Pre-defined resource types. */
var (
	/** @brief Package resource type. Anchors the online order of its members. */
	TypePackage = HashString("package")
	/** @brief Config resource type. Never waits on package order. */
	TypeConfig = HashString("config")
	/** @brief Text resource type. */
	TypeText = HashString("text")
	/** @brief Binary resource type. */
	TypeBinary = HashString("binary")
	/** @brief Image resource type. */
	TypeImage = HashString("image")
)

var typeNames = map[StringID]string{
	TypePackage: "package",
	TypeConfig:  "config",
	TypeText:    "text",
	TypeBinary:  "binary",
	TypeImage:   "image",
}

// TypeName returns the name of a built-in type, or its hex form.
func TypeName(t StringID) string {
	if n, ok := typeNames[t]; ok {
		return n
	}
	return t.String()
}

// ResourceID identifies a resource. Two resources are the same iff both
// hashes match.
type ResourceID struct {
	Type StringID
	Name StringID
}

// NewResourceID hashes a type and resource name into a ResourceID.
func NewResourceID(typ, name string) ResourceID {
	return ResourceID{Type: HashString(typ), Name: HashString(name)}
}

// String is the hexadecimal concatenation of the type and name ids. It is
// also the file name of the resource inside a data directory.
func (id ResourceID) String() string {
	return fmt.Sprintf("%016x%016x", uint64(id.Type), uint64(id.Name))
}

// ParseResourceID is the inverse of ResourceID.String.
func ParseResourceID(s string) (ResourceID, error) {
	if len(s) != 32 {
		return ResourceID{}, fmt.Errorf("resource id %q: expected 32 hex digits, got %d", s, len(s))
	}
	raw, err := hex.DecodeString(s)
	if err != nil {
		return ResourceID{}, fmt.Errorf("resource id %q: %w", s, err)
	}
	var t, n uint64
	for i := 0; i < 8; i++ {
		t = t<<8 | uint64(raw[i])
		n = n<<8 | uint64(raw[8+i])
	}
	return ResourceID{Type: StringID(t), Name: StringID(n)}, nil
}

/** @brief A magic number indicating the file as an anima bundle. */
const ResourceMagic uint32 = 0xdaaaadd1

/**
 * @brief The header written in front of every bundle entry.
 */
type ResourceHeader struct {
	/** @brief A magic number indicating the entry as an anima resource. */
	MagicNumber uint32
	/** @brief The format version of the entry's type. */
	Version uint32
}
