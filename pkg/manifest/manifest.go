// Package manifest generates the AndroidManifest.xml of a built application
package manifest

import (
	"encoding/xml"
	"errors"
	"fmt"
	"sort"

	"github.com/apkforge/apkforge/pkg/types"
	"github.com/apkforge/apkforge/pkg/utils"
)

const (
	androidNamespace = "http://schemas.android.com/apk/res/android"

	DefaultVersionCode = "1"
	DefaultVersionName = "1.0"
	MinSDKVersion      = "3"

	ActionMain       = "android.intent.action.MAIN"
	CategoryLauncher = "android.intent.category.LAUNCHER"

	ListPickerActivity = "com.google.appinventor.components.runtime.ListPickerActivity"
	WebViewActivity    = "com.google.appinventor.components.runtime.WebViewActivity"

	configChanges = "orientation|keyboardHidden"
)

// ErrManifestWrite indicates the manifest could not be produced
var ErrManifestWrite = errors.New("manifest could not be written")

// WriteError carries the path of the manifest that failed
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("writing manifest %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() []error {
	return []error{ErrManifestWrite, e.Err}
}

// Document is the root <manifest> element
type Document struct {
	XMLName        xml.Name    `xml:"manifest"`
	XMLNSAndroid   string      `xml:"xmlns:android,attr"`
	Package        string      `xml:"package,attr"`
	VersionCode    string      `xml:"android:versionCode,attr"`
	VersionName    string      `xml:"android:versionName,attr"`
	UsesPermission []Named     `xml:"uses-permission"`
	UsesSDK        UsesSDK     `xml:"uses-sdk"`
	Application    Application `xml:"application"`
}

// Named is any element identified only by android:name
type Named struct {
	Name string `xml:"android:name,attr"`
}

// UsesSDK declares the minimum platform level
type UsesSDK struct {
	MinSDKVersion string `xml:"android:minSdkVersion,attr"`
}

// Application holds the activities of the app
type Application struct {
	Debuggable string     `xml:"android:debuggable,attr"`
	Label      string     `xml:"android:label,attr"`
	Icon       string     `xml:"android:icon,attr"`
	Activities []Activity `xml:"activity"`
}

// Activity is one screen entry
type Activity struct {
	Name                string        `xml:"android:name,attr"`
	WindowSoftInputMode string        `xml:"android:windowSoftInputMode,attr,omitempty"`
	ConfigChanges       string        `xml:"android:configChanges,attr,omitempty"`
	ScreenOrientation   string        `xml:"android:screenOrientation,attr,omitempty"`
	IntentFilter        *IntentFilter `xml:"intent-filter"`
}

// IntentFilter advertises how an activity may be started
type IntentFilter struct {
	Actions    []Named `xml:"action"`
	Categories []Named `xml:"category"`
}

// Generate builds the manifest for project. Permissions are sorted and
// deduplicated so the output does not depend on input order.
func Generate(project *types.Project, permissions []string, mode types.BuildMode) (*Document, error) {
	pkg := project.PackageName()
	if pkg == "" {
		return nil, fmt.Errorf("%w: main entry point %q has no package", ErrManifestWrite, project.MainClass)
	}

	doc := &Document{
		XMLNSAndroid: androidNamespace,
		Package:      pkg,
		VersionCode:  orDefault(project.VersionCode, DefaultVersionCode),
		VersionName:  orDefault(project.VersionName, DefaultVersionName),
		UsesSDK:      UsesSDK{MinSDKVersion: MinSDKVersion},
		Application: Application{
			Debuggable: "true",
			Label:      project.Name,
			Icon:       "@drawable/ya",
		},
	}

	for _, p := range dedupe(permissions) {
		doc.UsesPermission = append(doc.UsesPermission, Named{Name: p})
	}

	for _, src := range project.Sources {
		isMain := src.QualifiedName == project.MainClass

		activity := Activity{
			Name:                src.QualifiedName,
			WindowSoftInputMode: "stateHidden",
			ConfigChanges:       configChanges,
			IntentFilter:        &IntentFilter{Actions: []Named{{Name: ActionMain}}},
		}
		if isMain {
			activity.Name = "." + types.ClassName(src.QualifiedName)
			// The live-development companion must stay out of the launcher.
			if mode != types.BuildModeREPL {
				activity.IntentFilter.Categories = []Named{{Name: CategoryLauncher}}
			}
		}
		doc.Application.Activities = append(doc.Application.Activities, activity)
	}

	doc.Application.Activities = append(doc.Application.Activities,
		Activity{
			Name:              ListPickerActivity,
			ConfigChanges:     configChanges,
			ScreenOrientation: "behind",
		},
		Activity{
			Name:              WebViewActivity,
			ConfigChanges:     configChanges,
			ScreenOrientation: "behind",
			IntentFilter:      &IntentFilter{Actions: []Named{{Name: ActionMain}}},
		},
	)

	return doc, nil
}

// Marshal serializes doc with an XML header and two-space indentation
func Marshal(doc *Document) ([]byte, error) {
	body, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	out := make([]byte, 0, len(xml.Header)+len(body)+1)
	out = append(out, xml.Header...)
	out = append(out, body...)
	return append(out, '\n'), nil
}

// Write serializes doc to path
func Write(path string, doc *Document) error {
	data, err := Marshal(doc)
	if err != nil {
		return &WriteError{Path: path, Err: err}
	}
	if err := utils.WriteFileAtomic(path, data, 0o644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// LaunchableCount counts the activities advertised to the launcher
func LaunchableCount(doc *Document) int {
	n := 0
	for _, a := range doc.Application.Activities {
		if a.IntentFilter == nil {
			continue
		}
		for _, c := range a.IntentFilter.Categories {
			if c.Name == CategoryLauncher {
				n++
			}
		}
	}
	return n
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func dedupe(perms []string) []string {
	seen := make(map[string]struct{}, len(perms))
	out := make([]string, 0, len(perms))
	for _, p := range perms {
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
