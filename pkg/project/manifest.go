// Package project loads a C# project: it reads the .csproj manifest, selects
// the compiled source files, parses them and builds the semantic index.
package project

import (
	"encoding/xml"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrManifestNotFound  = errors.New("project manifest not found")
	ErrAmbiguousManifest = errors.New("directory holds more than one project manifest")
)

const manifestExt = ".csproj"

// Manifest is the part of a .csproj that decides which files compile.
type Manifest struct {
	Path string
	Dir  string
	// SDK reports an SDK-style project. Those compile **/*.cs unless
	// DefaultItems is switched off.
	SDK          bool
	DefaultItems bool
	// Includes and Removes are slash-separated patterns, relative to Dir
	// unless absolute.
	Includes []string
	Removes  []string
}

// ResolveManifest turns a user-supplied path into the path of an existing
// manifest. The extension may be omitted, and a directory is accepted when
// it holds exactly one manifest.
func ResolveManifest(path string) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", fmt.Errorf("%w: empty path", ErrManifestNotFound)
	}

	if info, err := os.Stat(path); err == nil && info.IsDir() {
		matches, err := filepath.Glob(filepath.Join(path, "*"+manifestExt))
		if err != nil {
			return "", err
		}
		switch len(matches) {
		case 0:
			return "", fmt.Errorf("%w: no %s file in %s", ErrManifestNotFound, manifestExt, path)
		case 1:
			return filepath.Abs(matches[0])
		default:
			return "", fmt.Errorf("%w: %s", ErrAmbiguousManifest, path)
		}
	}

	if !strings.EqualFold(filepath.Ext(path), manifestExt) {
		path += manifestExt
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrManifestNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", ErrManifestNotFound, path)
	}
	return filepath.Abs(path)
}

type projectXML struct {
	XMLName        xml.Name          `xml:"Project"`
	Sdk            string            `xml:"Sdk,attr"`
	SdkElements    []sdkXML          `xml:"Sdk"`
	Imports        []sdkXML          `xml:"Import"`
	PropertyGroups []propertyGroupXML `xml:"PropertyGroup"`
	ItemGroups     []itemGroupXML     `xml:"ItemGroup"`
}

type sdkXML struct {
	Name string `xml:"Name,attr"`
	Sdk  string `xml:"Sdk,attr"`
}

type propertyGroupXML struct {
	EnableDefaultCompileItems []string `xml:"EnableDefaultCompileItems"`
}

type itemGroupXML struct {
	Compile []compileXML `xml:"Compile"`
}

type compileXML struct {
	Include string `xml:"Include,attr"`
	Remove  string `xml:"Remove,attr"`
}

// ParseManifest reads the manifest at path. Old-style projects with the
// msbuild namespace are accepted; they only compile what they include.
func ParseManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrManifestNotFound, path)
		}
		return nil, err
	}

	var doc projectXML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	m := &Manifest{
		Path: abs,
		Dir:  filepath.Dir(abs),
		SDK:  strings.TrimSpace(doc.Sdk) != "",
	}
	for _, s := range doc.SdkElements {
		if strings.TrimSpace(s.Name) != "" {
			m.SDK = true
		}
	}
	for _, s := range doc.Imports {
		if strings.TrimSpace(s.Sdk) != "" {
			m.SDK = true
		}
	}

	m.DefaultItems = m.SDK
	for _, group := range doc.PropertyGroups {
		// The last assignment wins, as in msbuild.
		for _, value := range group.EnableDefaultCompileItems {
			m.DefaultItems = m.SDK && !strings.EqualFold(strings.TrimSpace(value), "false")
		}
	}

	for _, group := range doc.ItemGroups {
		for _, item := range group.Compile {
			m.Includes = append(m.Includes, splitItems(item.Include, m.Dir)...)
			m.Removes = append(m.Removes, splitItems(item.Remove, m.Dir)...)
		}
	}
	return m, nil
}

// splitItems splits an msbuild item list on ";" and converts separators to
// slashes. The project directory properties are expanded; other msbuild
// properties are left as written.
func splitItems(raw, dir string) []string {
	var items []string
	for _, item := range strings.Split(raw, ";") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		for _, prop := range []string{"$(MSBuildProjectDirectory)", "$(MSBuildThisFileDirectory)"} {
			item = strings.ReplaceAll(item, prop, dir+"/")
		}
		item = strings.ReplaceAll(item, `\`, "/")
		items = append(items, item)
	}
	return items
}
