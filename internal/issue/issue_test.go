// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"strings"
	"testing"
)

var allIds = []Id{
	PackageManagerFailedId,
	VersionControlFailedId,
	SpecFileInvalidId,
	InstallFailedId,
	FilesystemFailedId,
	ConfigLoadFailedId,
	RecipeInvalidId,
	RevisionNotFoundId,
	ContainerEngineNotFoundId,
	ImageBuildFailedId,
	VerificationFailedId,
	PermissionDeniedId,
}

func TestId_Constants(t *testing.T) {
	seen := make(map[Id]bool)
	for _, id := range allIds {
		if seen[id] {
			t.Errorf("duplicate ID: %d", id)
		}
		seen[id] = true
	}

	// Verify IDs start at 1 (iota + 1)
	if PackageManagerFailedId != 1 {
		t.Errorf("PackageManagerFailedId = %d, want 1", PackageManagerFailedId)
	}
}

func TestIssue_DocLinks(t *testing.T) {
	issue := Get(VersionControlFailedId)
	if issue == nil {
		t.Fatal("Get(VersionControlFailedId) returned nil")
	}

	links := issue.DocLinks()
	if len(links) == 0 {
		t.Fatal("expected doc links for the version control issue")
	}

	// Modifying the returned slice should not affect the original
	original := links[0]
	links[0] = "modified"
	if issue.DocLinks()[0] != original {
		t.Error("DocLinks() should return a clone")
	}
}

func TestIssue_ExtLinks(t *testing.T) {
	issue := Get(ContainerEngineNotFoundId)
	if issue == nil {
		t.Fatal("Get(ContainerEngineNotFoundId) returned nil")
	}

	links := issue.ExtLinks()
	if len(links) == 0 {
		t.Fatal("expected external links for the container engine issue")
	}

	original := links[0]
	links[0] = "modified"
	if issue.ExtLinks()[0] != original {
		t.Error("ExtLinks() should return a clone")
	}
}

func TestGet(t *testing.T) {
	tests := []struct {
		id       Id
		wantNil  bool
		contains string
	}{
		{PackageManagerFailedId, false, "package manager failed"},
		{VersionControlFailedId, false, "Clone or checkout failed"},
		{SpecFileInvalidId, false, "environment specification"},
		{InstallFailedId, false, "Editable install failed"},
		{FilesystemFailedId, false, "filesystem step failed"},
		{ConfigLoadFailedId, false, "Failed to load configuration"},
		{RecipeInvalidId, false, "recipe is invalid"},
		{RevisionNotFoundId, false, "Revision not found"},
		{ContainerEngineNotFoundId, false, "Container engine not found"},
		{ImageBuildFailedId, false, "Image build failed"},
		{VerificationFailedId, false, "Verification failed"},
		{PermissionDeniedId, false, "Permission denied"},
		{Id(9999), true, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.contains, func(t *testing.T) {
			issue := Get(tt.id)

			if tt.wantNil {
				if issue != nil {
					t.Errorf("Get(%d) should return nil", tt.id)
				}
				return
			}

			if issue == nil {
				t.Fatalf("Get(%d) returned nil", tt.id)
			}
			if issue.Id() != tt.id {
				t.Errorf("issue.Id() = %d, want %d", issue.Id(), tt.id)
			}
			if !strings.Contains(string(issue.MarkdownMsg()), tt.contains) {
				t.Errorf("Get(%d).MarkdownMsg() should contain '%s'", tt.id, tt.contains)
			}
		})
	}
}

func TestValues(t *testing.T) {
	issues := Values()

	if len(issues) != len(allIds) {
		t.Fatalf("Values() returned %d issues, want %d", len(issues), len(allIds))
	}

	for i, issue := range issues {
		if issue.Id() != allIds[i] {
			t.Errorf("Values()[%d].Id() = %d, want %d (ordered by Id)", i, issue.Id(), allIds[i])
		}
	}
}

func TestIssue_Render_WithLinks(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	testIssue := &Issue{
		id:       Id(9999),
		mdMsg:    "# Test Issue\n\nThis is a test.",
		docLinks: []HttpLink{"https://docs.example.com"},
		extLinks: []HttpLink{"https://external.example.com"},
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if !strings.Contains(rendered, "## See also\n- <https://docs.example.com>\n- <https://external.example.com>\n") {
		t.Errorf("Render() should list every link, got:\n%s", rendered)
	}
}

func TestIssue_Render_NoLinks(t *testing.T) {
	originalRender := render
	defer func() { render = originalRender }()

	render = func(in string, stylePath string) (string, error) {
		return in, nil
	}

	testIssue := &Issue{
		id:    Id(9998),
		mdMsg: "# Test Issue\n\nNo links here.",
	}

	rendered, err := testIssue.Render("")
	if err != nil {
		t.Fatalf("Render() returned error: %v", err)
	}

	if strings.Contains(rendered, "See also") {
		t.Error("Render() without links should not contain 'See also'")
	}
}

func TestAllIssuesAreRenderable(t *testing.T) {
	for _, issue := range Values() {
		if issue.MarkdownMsg() == "" {
			t.Errorf("Issue %d has empty MarkdownMsg", issue.Id())
		}
		rendered, err := issue.Render("notty")
		if err != nil {
			t.Errorf("Issue %d failed to render: %v", issue.Id(), err)
		}
		if rendered == "" {
			t.Errorf("Issue %d rendered to empty string", issue.Id())
		}
	}
}
