package sockaddr

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

// Family is an address family tag (sa_family_t).
type Family uint16

const (
	FamilyUnspec    Family = unix.AF_UNSPEC
	FamilyUnix      Family = unix.AF_UNIX
	FamilyInet      Family = unix.AF_INET
	FamilyInet6     Family = unix.AF_INET6
	FamilyAppleTalk Family = unix.AF_APPLETALK
	FamilyIPX       Family = unix.AF_IPX
	FamilyIRDA      Family = unix.AF_IRDA
)

var familyNames = map[Family]string{
	FamilyUnspec:    "AF_UNSPEC",
	FamilyUnix:      "AF_UNIX",
	FamilyInet:      "AF_INET",
	FamilyInet6:     "AF_INET6",
	FamilyAppleTalk: "AF_APPLETALK",
	FamilyIPX:       "AF_IPX",
	FamilyIRDA:      "AF_IRDA",
}

// Families returns the name of every address family known to this package,
// keyed by name. PF_* and AF_LOCAL aliases are included.
func Families() map[string]Family {
	result := make(map[string]Family, 2*len(familyNames)+2)
	for family, name := range familyNames {
		result[name] = family
		result["PF_"+strings.TrimPrefix(name, "AF_")] = family
	}
	result["AF_LOCAL"] = FamilyUnix
	result["PF_LOCAL"] = FamilyUnix
	return result
}

func (f Family) String() string {
	if name, ok := familyNames[f]; ok {
		return name
	}
	return fmt.Sprintf("AF_%d", uint16(f))
}

// ParseFamily resolves a family name such as "AF_INET", "PF_INET6" or
// "AF_LOCAL". The "AF_<number>" form produced by String is accepted too.
func ParseFamily(name string) (Family, error) {
	upper := strings.ToUpper(name)
	if family, ok := Families()[upper]; ok {
		return family, nil
	}
	if n, err := strconv.ParseUint(strings.TrimPrefix(upper, "AF_"), 10, 16); err == nil && strings.HasPrefix(upper, "AF_") {
		return Family(n), nil
	}
	return 0, fmt.Errorf("unknown address family %q", name)
}

// MarshalText encodes the family by name.
func (f Family) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText accepts anything ParseFamily does.
func (f *Family) UnmarshalText(text []byte) error {
	family, err := ParseFamily(string(text))
	if err != nil {
		return err
	}
	*f = family
	return nil
}
