package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/df07/go-wgpu-pathtracer/pkg/imageio"
	"github.com/df07/go-wgpu-pathtracer/pkg/scene"
)

func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &out
	err := app.Run(append([]string{"pathtracer"}, args...))
	return out.String(), err
}

func TestGenerateScene(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		minSpheres  int
		expectError bool
	}{
		{"random scene", []string{"--seed", "7", "--size", "2"}, 5, false},
		{"grid scene", []string{"--builtin", "grid"}, 100, false},
		{"default scene", []string{"--builtin", "default"}, 2, false},
		{"unknown builtin", []string{"--builtin", "cornell"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out", "scene.json")
			args := append([]string{"gen-scene"}, tt.args...)
			_, err := runApp(t, append(args, path)...)

			if tt.expectError {
				if err == nil {
					t.Fatalf("Expected error for %v", tt.args)
				}
				return
			}
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			sc, err := scene.Load(path)
			if err != nil {
				t.Fatalf("Generated scene does not load: %v", err)
			}
			if len(sc.Spheres) < tt.minSpheres {
				t.Errorf("Expected at least %d spheres, got %d", tt.minSpheres, len(sc.Spheres))
			}
		})
	}
}

func TestGenerateSceneIsDeterministic(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.json")
	b := filepath.Join(dir, "b.json")
	for _, path := range []string{a, b} {
		if _, err := runApp(t, "gen-scene", "--seed", "42", path); err != nil {
			t.Fatalf("gen-scene failed: %v", err)
		}
	}

	dataA, _ := os.ReadFile(a)
	dataB, _ := os.ReadFile(b)
	if !bytes.Equal(dataA, dataB) {
		t.Error("Expected identical scenes for the same seed")
	}
}

func TestMissingArguments(t *testing.T) {
	for _, command := range []string{"gen-scene", "bvh", "render"} {
		t.Run(command, func(t *testing.T) {
			if _, err := runApp(t, command); err == nil {
				t.Errorf("Expected %s without a scene argument to fail", command)
			}
		})
	}
}

func TestInspectBVH(t *testing.T) {
	out, err := runApp(t, "bvh", "--seed", "3", "--nodes", "default")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, want := range []string{"Leaves", "escape", "object"} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected output to contain %q, got:\n%s", want, out)
		}
	}
}

func TestListScenes(t *testing.T) {
	dir := t.TempDir()
	if _, err := runApp(t, "gen-scene", "--builtin", "default", filepath.Join(dir, "my-scene.json")); err != nil {
		t.Fatalf("gen-scene failed: %v", err)
	}

	out, err := runApp(t, "scenes", "--dir", dir)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	for _, want := range []string{"Sphere Grid", "Random Spheres", filepath.Join(dir, "my-scene.json")} {
		if !strings.Contains(out, want) {
			t.Errorf("Expected listing to contain %q, got:\n%s", want, out)
		}
	}
}

func TestRenderCommand(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name   string
		output string
	}{
		{"png output", "render.png"},
		{"webp output", "render.webp"},
		{"bmp output", "render.bmp"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output := filepath.Join(dir, tt.output)
			_, err := runApp(t, "render",
				"--width", "16", "--height", "8", "--frames", "2",
				"--device", "software", "--seed", "1",
				"--out", output, "scenes/three-spheres.json")
			if err != nil {
				t.Fatalf("Unexpected error: %v", err)
			}

			img, err := imageio.Load(output)
			if err != nil {
				t.Fatalf("Failed to load rendered image: %v", err)
			}
			if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 8 {
				t.Errorf("Expected 16x8 image, got %dx%d", b.Dx(), b.Dy())
			}
		})
	}
}

func TestRenderCommandErrors(t *testing.T) {
	dir := t.TempDir()
	tests := []struct {
		name string
		args []string
	}{
		{"unknown device", []string{"--device", "vulkan", "default"}},
		{"missing scene file", []string{"--device", "software", filepath.Join(dir, "nope.json")}},
		{"missing config file", []string{"--config", filepath.Join(dir, "nope.json"), "default"}},
		{"unknown output format", []string{"--width", "4", "--height", "4", "--frames", "1", "--out", filepath.Join(dir, "x.gif"), "default"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := runApp(t, append([]string{"render"}, tt.args...)...); err == nil {
				t.Errorf("Expected error for %v", tt.args)
			}
		})
	}
}
