// SPDX-License-Identifier: MPL-2.0

package issue

import (
	"slices"

	"github.com/charmbracelet/glamour"
	"golang.org/x/exp/maps"
)

type Id int

const (
	PackageManagerFailedId Id = iota + 1
	VersionControlFailedId
	SpecFileInvalidId
	InstallFailedId
	FilesystemFailedId
	ConfigLoadFailedId
	RecipeInvalidId
	RevisionNotFoundId
	ContainerEngineNotFoundId
	ImageBuildFailedId
	VerificationFailedId
	PermissionDeniedId
)

type MarkdownMsg string

type HttpLink string

type Renderer interface {
	Render(in string, stylePath string) (string, error)
}

type Issue struct {
	id       Id          // ID used to lookup the issue
	mdMsg    MarkdownMsg // Markdown text that will be rendered
	docLinks []HttpLink  // upstream documentation for the failing tool
	extLinks []HttpLink  // external links that might be useful for the user
}

func (i *Issue) Id() Id {
	return i.id
}

func (i *Issue) MarkdownMsg() MarkdownMsg {
	return i.mdMsg
}

func (i *Issue) DocLinks() []HttpLink {
	return slices.Clone(i.docLinks)
}

func (i *Issue) ExtLinks() []HttpLink {
	return slices.Clone(i.extLinks)
}

func (i *Issue) Render(stylePath string) (string, error) {
	extraMd := ""
	if len(i.docLinks) > 0 || len(i.extLinks) > 0 {
		extraMd += "\n\n## See also\n"
		for _, link := range i.docLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
		for _, link := range i.extLinks {
			extraMd += "- <" + string(link) + ">\n"
		}
	}
	return render(string(i.mdMsg)+extraMd, stylePath)
}

var (
	render = glamour.Render

	packageManagerFailedIssue = &Issue{
		id: PackageManagerFailedId,
		mdMsg: `
# The package manager failed!

A conda-family command (solver install, solver selection or environment
creation) exited with an error. Its output is shown above, unmodified.

## Things you can try:
- Check that the package manager is on your PATH:
~~~
$ conda --version
~~~

- Pick another client if mamba or micromamba is installed:
~~~
$ ENVPROV_PACKAGE_MANAGER=mamba envprov provision
~~~

- Remove a half-created environment before retrying:
~~~
$ conda env remove -n weather-tools
~~~`,
		docLinks: []HttpLink{
			"https://docs.conda.io/projects/conda/en/latest/user-guide/tasks/manage-environments.html",
			"https://conda.github.io/conda-libmamba-solver/",
		},
	}

	versionControlFailedIssue = &Issue{
		id: VersionControlFailedId,
		mdMsg: `
# Clone or checkout failed!

git could not clone a project repository or could not check out the requested
revision.

## Things you can try:
- Confirm the revision exists on the remote:
~~~
$ git ls-remote https://github.com/google/weather-tools.git <revision>
~~~

- Revisions can be a branch, a tag or a commit id
- Remove a leftover checkout directory from a previous attempt
- Check network access to the repository host`,
		docLinks: []HttpLink{
			"https://git-scm.com/docs/git-clone",
			"https://git-scm.com/docs/git-checkout",
		},
	}

	specFileInvalidIssue = &Issue{
		id: SpecFileInvalidId,
		mdMsg: `
# The environment specification is missing or malformed!

The first project's environment.yml could not be read or parsed at the
checked-out revision, so the environment was not created.

## Things you can try:
- Check that the revision you selected still ships environment.yml
- Validate the YAML locally:
~~~
$ python -c 'import yaml,sys; yaml.safe_load(open(sys.argv[1]))' environment.yml
~~~`,
		docLinks: []HttpLink{
			"https://docs.conda.io/projects/conda/en/latest/user-guide/tasks/manage-environments.html#creating-an-environment-from-an-environment-yml-file",
		},
	}

	installFailedIssue = &Issue{
		id: InstallFailedId,
		mdMsg: `
# Editable install failed!

pip could not install a project in editable mode into the environment.

## Things you can try:
- Check that pip resolves inside the environment:
~~~
$ conda run -n weather-tools which pip
~~~

- Look for build errors of native dependencies in the output above
- The second project installs into the first project's environment; its
  dependencies must be satisfiable there`,
		docLinks: []HttpLink{
			"https://pip.pypa.io/en/stable/topics/local-project-installs/",
		},
	}

	filesystemFailedIssue = &Issue{
		id: FilesystemFailedId,
		mdMsg: `
# A filesystem step failed!

Removing test fixtures or updating the login script failed.

## Things you can try:
- Check ownership and permissions of the checkout directory
- Check that the login script's directory exists and is writable`,
	}

	configLoadFailedIssue = &Issue{
		id: ConfigLoadFailedId,
		mdMsg: `
# Failed to load configuration!

The config file could not be read or does not match the schema.

## Things you can try:
- Show the effective configuration:
~~~
$ envprov config dump
~~~

- Write a fresh default file:
~~~
$ envprov config init
~~~

- Check ENVPROV_* environment variables for typos`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	recipeInvalidIssue = &Issue{
		id: RecipeInvalidId,
		mdMsg: `
# The recipe is invalid!

The recipe file or a command-line parameter was rejected before anything ran.

## Common issues:
- Revisions starting with '-' or containing whitespace
- An environment name other than letters, digits, '.', '_' and '-'
- Checkout directories that are not absolute
- The environment owner is not the first project

## Things you can try:
- Print the plan to see the effective parameters:
~~~
$ envprov plan --env-name my-env --weather-rev v1.0.0
~~~`,
		extLinks: []HttpLink{"https://cuelang.org/docs/"},
	}

	revisionNotFoundIssue = &Issue{
		id: RevisionNotFoundId,
		mdMsg: `
# Revision not found!

A revision selector did not resolve to a commit on the remote, so the run
stopped before the environment was created.

## Things you can try:
- List branches and tags:
~~~
$ git ls-remote --heads --tags <repository>
~~~

- Omit the parameter to use the mainline branch
- Use --skip-preflight only if the remote is unreachable but the revision exists`,
	}

	containerEngineNotFoundIssue = &Issue{
		id: ContainerEngineNotFoundId,
		mdMsg: `
# Container engine not found!

Image mode requires Docker or Podman, and neither is available.

## Things you can try:
- Install Podman or Docker
- Select the engine explicitly:
~~~
$ envprov image build --engine docker
~~~

- Render the Dockerfile and build it elsewhere:
~~~
$ envprov dockerfile -o Dockerfile
~~~`,
		extLinks: []HttpLink{
			"https://podman.io/docs/installation",
			"https://docs.docker.com/engine/install/",
		},
	}

	imageBuildFailedIssue = &Issue{
		id: ImageBuildFailedId,
		mdMsg: `
# Image build failed!

The container engine could not build the rendered Dockerfile.

## Things you can try:
- Inspect the rendered Dockerfile:
~~~
$ envprov dockerfile
~~~

- Rebuild without the layer cache:
~~~
$ envprov image build --force-rebuild --no-cache
~~~`,
	}

	verificationFailedIssue = &Issue{
		id: VerificationFailedId,
		mdMsg: `
# Verification failed!

The provisioned environment does not satisfy every expected property.

## Things you can try:
- Rerun provisioning from a clean state
- Compare the receipt with the current checkouts:
~~~
$ envprov verify --receipt /var/lib/envprov/receipt.toml -v
~~~`,
	}

	permissionDeniedIssue = &Issue{
		id: PermissionDeniedId,
		mdMsg: `
# Permission denied!

envprov writes the checkout directories, the environment, the login script
and the receipt. One of them is not writable by the current user.

## Things you can try:
- Run inside the target container or as the owning user
- Disable the receipt or move it:
~~~
$ envprov provision --receipt ""
~~~`,
	}

	issues = map[Id]*Issue{
		packageManagerFailedIssue.Id():    packageManagerFailedIssue,
		versionControlFailedIssue.Id():    versionControlFailedIssue,
		specFileInvalidIssue.Id():         specFileInvalidIssue,
		installFailedIssue.Id():           installFailedIssue,
		filesystemFailedIssue.Id():        filesystemFailedIssue,
		configLoadFailedIssue.Id():        configLoadFailedIssue,
		recipeInvalidIssue.Id():           recipeInvalidIssue,
		revisionNotFoundIssue.Id():        revisionNotFoundIssue,
		containerEngineNotFoundIssue.Id(): containerEngineNotFoundIssue,
		imageBuildFailedIssue.Id():        imageBuildFailedIssue,
		verificationFailedIssue.Id():      verificationFailedIssue,
		permissionDeniedIssue.Id():        permissionDeniedIssue,
	}
)

// Values returns every catalog entry ordered by Id.
func Values() []*Issue {
	ids := maps.Keys(issues)
	slices.Sort(ids)
	out := make([]*Issue, 0, len(ids))
	for _, id := range ids {
		out = append(out, issues[id])
	}
	return out
}

func Get(id Id) *Issue {
	return issues[id]
}
