package cli

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/application"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/config"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/domain/pet"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/events"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/handler"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/auth"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/database"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/platform/domain"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/repository"
	"github.com/Kilat-Pet-Delivery/service-pet-manager/internal/view"
)

// run executes one petctl invocation against dataDir, the way a user would
// from a shell.
func run(t *testing.T, dataDir, stdin string, args ...string) (string, error) {
	t.Helper()
	v, err := config.NewClientViper()
	require.NoError(t, err)

	app := NewApp(v, strings.NewReader(stdin))
	root := NewRootCommand(app)
	out := new(bytes.Buffer)
	root.SetOut(out)
	root.SetErr(out)
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))

	err = root.ExecuteContext(context.Background())
	require.NoError(t, app.Close())
	return out.String(), err
}

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	db, err := database.OpenSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&repository.UserModel{}, &repository.PetModel{}))

	jwt := auth.NewJWTManager("test-secret", 15*time.Minute, time.Hour)
	authSvc := application.NewAuthService(repository.NewGormUserRepository(db), jwt, events.Discard{}, application.DefaultAuthConfig(), zap.NewNop())
	petSvc := application.NewPetService(repository.NewGormPetRepository(db), events.Discard{}, zap.NewNop())

	r := gin.New()
	handler.NewAuthHandler(authSvc).RegisterRoutes(r)
	handler.NewPetHandler(petSvc).RegisterRoutes(r, authSvc)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestRootCommand_Tree(t *testing.T) {
	v, err := config.NewClientViper()
	require.NoError(t, err)
	root := NewRootCommand(NewApp(v, strings.NewReader("")))

	names := map[string][]string{}
	for _, group := range root.Commands() {
		for _, sub := range group.Commands() {
			names[group.Name()] = append(names[group.Name()], sub.Name())
		}
	}
	assert.ElementsMatch(t, []string{"signup", "signin", "signout", "whoami"}, names["auth"])
	assert.ElementsMatch(t, []string{"list", "add", "edit", "delete"}, names["pets"])

	for _, flag := range []string{"local", "server", "data-dir", "verbose"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), flag)
	}
}

func TestLocal_AddListEditDelete(t *testing.T) {
	dir := t.TempDir()

	out, err := run(t, dir, "", "--local", "pets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, view.EmptyMessage)

	out, err = run(t, dir, "", "--local", "pets", "add",
		"--name", "Rex", "--breed", "Lab", "--age", "1", "--weight", "30.5", "--vaccinated", "2024-05-01")
	require.NoError(t, err)
	assert.Contains(t, out, "Added")
	assert.Contains(t, out, "🐕 Rex ♂ · Lab · 1 year · 30.5kg · vaccinated 2024-05-01")

	_, err = run(t, dir, "", "--local", "pets", "add",
		"--name", "Tom", "--species", "cat", "--breed", "Tabby", "--gender", "female")
	require.NoError(t, err)

	out, err = run(t, dir, "", "--local", "pets", "list")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], "Tom", "newest first")
	assert.Contains(t, lines[1], "Rex")

	rexID := strings.Fields(lines[1])[0]
	out, err = run(t, dir, "", "--local", "pets", "edit", rexID, "--age", "4", "--vaccinated", "")
	require.NoError(t, err)
	assert.Contains(t, out, "4 years")
	assert.NotContains(t, out, "vaccinated")
	assert.Contains(t, out, "Lab", "unchanged fields are kept")

	out, err = run(t, dir, "n\n", "--local", "pets", "delete", rexID)
	require.NoError(t, err)
	assert.Contains(t, out, "Cancelled")

	out, err = run(t, dir, "", "--local", "pets", "delete", rexID, "--yes")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted Rex")

	out, err = run(t, dir, "", "--local", "pets", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "Rex")
	assert.Contains(t, out, "Tom")
}

func TestLocal_DeleteConfirmedByPrompt(t *testing.T) {
	dir := t.TempDir()
	out, err := run(t, dir, "", "--local", "pets", "add", "--name", "Rex", "--breed", "Lab")
	require.NoError(t, err)
	id := strings.Fields(out)[1]

	out, err = run(t, dir, "yes\n", "--local", "pets", "delete", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted Rex")
}

func TestLocal_AddRejectsInvalidInput(t *testing.T) {
	dir := t.TempDir()

	_, err := run(t, dir, "", "--local", "pets", "add", "--name", "  ", "--breed", "Lab", "--species", "fish")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "name")
	assert.Contains(t, err.Error(), "species")

	_, err = run(t, dir, "", "--local", "pets", "add", "--name", "Rex", "--breed", "Lab", "--vaccinated", "May 1st")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--vaccinated")

	out, err := run(t, dir, "", "--local", "pets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, view.EmptyMessage)
}

func TestLocal_EditUnknownID(t *testing.T) {
	_, err := run(t, t.TempDir(), "", "--local", "pets", "edit", uuid.NewString(), "--age", "2")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemote_RequiresSignIn(t *testing.T) {
	srv := newServer(t)
	_, err := run(t, t.TempDir(), "", "--server", srv.URL, "pets", "list")
	assert.ErrorIs(t, err, ErrNotSignedIn)
}

func TestRemote_SessionSurvivesInvocations(t *testing.T) {
	srv := newServer(t)
	dir := t.TempDir()
	remote := func(stdin string, args ...string) (string, error) {
		return run(t, dir, stdin, append([]string{"--server", srv.URL}, args...)...)
	}

	out, err := remote("", "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "Not signed in")

	out, err = remote("secret1\n", "auth", "signup", "--email", "ann@example.com")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed in as ann@example.com")

	out, err = remote("", "auth", "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ann@example.com")

	_, err = remote("", "pets", "add", "--name", "Rex", "--breed", "Lab")
	require.NoError(t, err)
	out, err = remote("", "pets", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Rex")

	out, err = remote("", "auth", "signout")
	require.NoError(t, err)
	assert.Contains(t, out, "Signed out")

	_, err = remote("", "pets", "list")
	assert.ErrorIs(t, err, ErrNotSignedIn)

	_, err = remote("", "auth", "signin", "--email", "ann@example.com", "--password", "wrong-password")
	require.Error(t, err)
	assert.Equal(t, "invalid email or password", err.Error())

	_, err = remote("", "auth", "signup", "--email", "ann@example.com", "--password", "secret1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")
}

func TestResolvePet(t *testing.T) {
	a := pet.Pet{ID: uuid.MustParse("aaaa1111-0000-0000-0000-000000000000"), Name: "A"}
	b := pet.Pet{ID: uuid.MustParse("aaaa2222-0000-0000-0000-000000000000"), Name: "B"}
	pets := []pet.Pet{a, b}

	got, err := resolvePet(pets, "aaaa1")
	require.NoError(t, err)
	assert.Equal(t, "A", got.Name)

	got, err = resolvePet(pets, b.ID.String())
	require.NoError(t, err)
	assert.Equal(t, "B", got.Name)

	_, err = resolvePet(pets, "aaaa")
	assert.ErrorContains(t, err, "matches 2 pets")

	_, err = resolvePet(pets, "ffff")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = resolvePet(pets, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
