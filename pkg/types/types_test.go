package types_test

import (
	"encoding/json"
	"testing"

	"github.com/apkforge/apkforge/pkg/types"
)

func TestQualifiedNames(t *testing.T) {
	tests := []struct {
		qualified string
		pkg       string
		class     string
	}{
		{"com.example.HelloPurr.Screen1", "com.example.HelloPurr", "Screen1"},
		{"appinventor.ai_test.HelloPurr.Screen2", "appinventor.ai_test.HelloPurr", "Screen2"},
		{"Screen1", "", "Screen1"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.qualified, func(t *testing.T) {
			if got := types.PackageName(tt.qualified); got != tt.pkg {
				t.Errorf("PackageName(%q) = %q, want %q", tt.qualified, got, tt.pkg)
			}
			if got := types.ClassName(tt.qualified); got != tt.class {
				t.Errorf("ClassName(%q) = %q, want %q", tt.qualified, got, tt.class)
			}
		})
	}
}

func TestProject_MainSource(t *testing.T) {
	p := &types.Project{
		MainClass: "com.example.HelloPurr.Screen1",
		Sources: []types.SourceDescriptor{
			{QualifiedName: "com.example.HelloPurr.Screen2", File: "Screen2.scm"},
			{QualifiedName: "com.example.HelloPurr.Screen1", File: "Screen1.scm"},
		},
	}

	if got := p.PackageName(); got != "com.example.HelloPurr" {
		t.Errorf("PackageName() = %q", got)
	}

	main, ok := p.MainSource()
	if !ok || main.File != "Screen1.scm" {
		t.Errorf("MainSource() = %+v, %v", main, ok)
	}
	if got := main.ScreenName(); got != "Screen1" {
		t.Errorf("ScreenName() = %q", got)
	}

	p.MainClass = "com.example.HelloPurr.Screen9"
	if _, ok := p.MainSource(); ok {
		t.Error("expected no main source")
	}
}

func TestProject_DescriptorJSON(t *testing.T) {
	data := `{
		"name": "HelloPurr",
		"main": "com.example.HelloPurr.Screen1",
		"sources": [{"qualifiedName": "com.example.HelloPurr.Screen1", "file": "src/Screen1.scm"}],
		"assets": "assets",
		"icon": "kitty.png",
		"versionCode": "2",
		"versionName": "1.1",
		"buildDir": "out",
		"components": ["com.google.appinventor.components.runtime.Sound"]
	}`

	var p types.Project
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if p.Name != "HelloPurr" || p.MainClass != "com.example.HelloPurr.Screen1" {
		t.Errorf("unexpected identity: %+v", p)
	}
	if len(p.Sources) != 1 || p.Sources[0].File != "src/Screen1.scm" {
		t.Errorf("unexpected sources: %+v", p.Sources)
	}
	if p.AssetsDir != "assets" || p.BuildDir != "out" || p.Icon != "kitty.png" {
		t.Errorf("unexpected paths: %+v", p)
	}
	if p.VersionCode != "2" || p.VersionName != "1.1" {
		t.Errorf("unexpected version: %q %q", p.VersionCode, p.VersionName)
	}
	if len(p.Components) != 1 {
		t.Errorf("unexpected components: %v", p.Components)
	}
}

func TestBuildResult_Status(t *testing.T) {
	ok := &types.BuildResult{Success: true}
	if ok.Status() != types.BuildStatusSucceeded {
		t.Errorf("Status() = %s", ok.Status())
	}

	failed := &types.BuildResult{FailedStage: types.StageSign}
	if failed.Status() != types.BuildStatusFailed {
		t.Errorf("Status() = %s", failed.Status())
	}
}

func TestBuildResult_ErrIsNotPersisted(t *testing.T) {
	r := types.BuildResult{Project: "HelloPurr", FailedStage: types.StageCompile, Err: json.Unmarshal([]byte("{"), &struct{}{})}

	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back types.BuildResult
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Err != nil {
		t.Errorf("Err survived a round trip: %v", back.Err)
	}
	if back.FailedStage != types.StageCompile {
		t.Errorf("FailedStage = %q", back.FailedStage)
	}
}

func TestStagesOrder(t *testing.T) {
	want := []types.Stage{
		types.StageIconPrep,
		types.StagePermissionResolve,
		types.StageManifestWrite,
		types.StageCompile,
		types.StageTranslate,
		types.StagePackage,
		types.StageSeal,
		types.StageSign,
	}
	if len(types.Stages) != len(want) {
		t.Fatalf("got %d stages, want %d", len(types.Stages), len(want))
	}
	for i := range want {
		if types.Stages[i] != want[i] {
			t.Errorf("stage %d = %s, want %s", i, types.Stages[i], want[i])
		}
	}
}
