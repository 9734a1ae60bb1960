package appfunctiondata

import (
	"fmt"

	"github.com/ggoodman/appfunctions-go/metadata"
)

// URIGrantQualifiedName is the schema type of a URI permission grant.
const URIGrantQualifiedName = "androidx.appfunctions.AppFunctionUriGrant"

// URI permission flags.
const (
	FlagGrantReadURIPermission        int32 = 0x00000001
	FlagGrantWriteURIPermission       int32 = 0x00000002
	FlagGrantPersistableURIPermission int32 = 0x00000040
	FlagGrantPrefixURIPermission      int32 = 0x00000080
)

const allowedGrantFlags = FlagGrantReadURIPermission | FlagGrantWriteURIPermission | FlagGrantPrefixURIPermission

// URIGrant grants the receiving agent temporary access to a resource.
type URIGrant struct {
	URI       string
	ModeFlags int32
}

// NewURIGrant validates modeFlags: only read, write and prefix are allowed,
// persistable grants are rejected, and at least one of read or write must be
// set.
func NewURIGrant(uri string, modeFlags int32) (URIGrant, error) {
	if modeFlags&FlagGrantPersistableURIPermission != 0 {
		return URIGrant{}, invalidArgf("modeFlags", "persistable URI grants are not allowed")
	}
	if modeFlags&^allowedGrantFlags != 0 {
		return URIGrant{}, invalidArgf("modeFlags", "unsupported flags %#x", modeFlags&^allowedGrantFlags)
	}
	if modeFlags&(FlagGrantReadURIPermission|FlagGrantWriteURIPermission) == 0 {
		return URIGrant{}, invalidArgf("modeFlags", "at least one of read or write must be granted")
	}
	return URIGrant{URI: uri, ModeFlags: modeFlags}, nil
}

func (g URIGrant) String() string {
	return fmt.Sprintf("URIGrant(%s, %#x)", g.URI, g.ModeFlags)
}

var uriGrantType = &metadata.ObjectType{
	QualifiedName: URIGrantQualifiedName,
	Properties: []metadata.Property{
		{Name: "uri", Type: metadata.String()},
		{Name: "modeFlags", Type: metadata.Int()},
	},
	Required: []string{"uri", "modeFlags"},
}

// URIGrantType returns the object descriptor of a URIGrant.
func URIGrantType() *metadata.ObjectType { return uriGrantType }

type uriGrantFactory struct{}

func (uriGrantFactory) FromData(d *Data) (URIGrant, error) {
	uri, err := d.GetString("uri")
	if err != nil {
		return URIGrant{}, err
	}
	flags, err := d.GetInt("modeFlags")
	if err != nil {
		return URIGrant{}, err
	}
	return NewURIGrant(uri, flags)
}

func (uriGrantFactory) ToData(g URIGrant) (*Data, error) {
	b := NewBuilder(uriGrantType, metadata.Components{})
	if err := b.SetString("uri", g.URI); err != nil {
		return nil, err
	}
	if err := b.SetInt("modeFlags", g.ModeFlags); err != nil {
		return nil, err
	}
	return b.Build(), nil
}
