package build

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
)

// rawName and rawCode are the intermediate shapes the streaming XML
// parser builds before EPPOBuild normalizes them into rows. The source
// format nests scalar values as leaf elements (<eppocode>, <fullname>,
// <lang>, <langcountry>, <authority>) inside structural elements
// (<codes>, <code>, <name>); type/isactive/ispreferred/creation/
// modification travel as attributes on the structural elements.
type rawName struct {
	FullName     string
	Lang         string
	LangCountry  *string
	Authority    *string
	IsPreferred  bool
	IsActive     bool
	Creation     *string
	Modification *string
}

type rawCode struct {
	EppoCode     string
	Type         string
	IsActive     bool
	Creation     *string
	Modification *string
	Names        []rawName
}

// streamEPPOXML pulls codes and version metadata out of r one element at
// a time, never holding more than one code's worth of names in memory.
// onCode is called once per </code>, in document order, for every code
// regardless of admission; callers decide admission.
func streamEPPOXML(r io.Reader, onCode func(rawCode) error) (dateexport, version string, err error) {
	dec := xml.NewDecoder(r)

	var (
		stack   []string // context labels: "root", "code", "name", or "leaf:<tag>"
		code    rawCode
		name    rawName
		text    strings.Builder
		sawRoot bool
	)

	top := func() string {
		if len(stack) == 0 {
			return ""
		}
		return stack[len(stack)-1]
	}

	for {
		tok, tokErr := dec.Token()
		if tokErr == io.EOF {
			break
		}
		if tokErr != nil {
			return dateexport, version, fmt.Errorf("xml decode: %w", tokErr)
		}

		switch t := tok.(type) {
		case xml.StartElement:
			switch {
			case !sawRoot:
				sawRoot = true
				dateexport = attrOf(t, "dateexport")
				version = attrOf(t, "version")
				stack = append(stack, "root")

			case t.Name.Local == "code" && top() == "root":
				code = rawCode{
					Type:     attrOf(t, "type"),
					IsActive: attrOf(t, "isactive") == "true",
				}
				if v := attrOf(t, "creation"); v != "" {
					code.Creation = &v
				}
				if v := attrOf(t, "modification"); v != "" {
					code.Modification = &v
				}
				stack = append(stack, "code")

			case t.Name.Local == "name" && top() == "code":
				name = rawName{
					IsPreferred: attrOf(t, "ispreferred") == "true",
					IsActive:    attrOf(t, "isactive") == "true",
				}
				if v := attrOf(t, "creation"); v != "" {
					name.Creation = &v
				}
				if v := attrOf(t, "modification"); v != "" {
					name.Modification = &v
				}
				stack = append(stack, "name")

			case isLeafTag(t.Name.Local):
				text.Reset()
				stack = append(stack, "leaf:"+t.Name.Local)

			default:
				// Unrecognized nesting: skip its subtree by descending without
				// tracking state; EndElement pops harmlessly since every push
				// has a matching pop.
				stack = append(stack, "skip")
			}

		case xml.CharData:
			if strings.HasPrefix(top(), "leaf:") {
				text.Write(t)
			}

		case xml.EndElement:
			ctx := top()
			stack = stack[:len(stack)-1]

			switch {
			case strings.HasPrefix(ctx, "leaf:"):
				tag := strings.TrimPrefix(ctx, "leaf:")
				val := strings.TrimSpace(text.String())
				assignLeaf(&code, &name, top(), tag, val)

			case ctx == "name":
				code.Names = append(code.Names, name)
				name = rawName{}

			case ctx == "code":
				if err := onCode(code); err != nil {
					return dateexport, version, err
				}
				code = rawCode{}
			}
		}
	}

	return dateexport, version, nil
}

func isLeafTag(tag string) bool {
	switch tag {
	case "eppocode", "fullname", "lang", "langcountry", "authority":
		return true
	}
	return false
}

// assignLeaf routes a completed leaf element's text to the right field of
// whichever container (code or name) is currently open above it.
func assignLeaf(code *rawCode, name *rawName, container, tag, val string) {
	switch container {
	case "code":
		if tag == "eppocode" {
			code.EppoCode = strings.ToUpper(val)
		}
	case "name":
		switch tag {
		case "fullname":
			name.FullName = val
		case "lang":
			name.Lang = val
		case "langcountry":
			if val != "" {
				v := strings.ToUpper(val)
				name.LangCountry = &v
			}
		case "authority":
			if val != "" {
				v := val
				name.Authority = &v
			}
		}
	}
}

func attrOf(t xml.StartElement, name string) string {
	for _, a := range t.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}
