package services

import (
	"context"
	"testing"

	"clientbridge/pkg/apperrors"
	"clientbridge/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInviteScenario(t *testing.T) {
	e := newTestEnv(t)
	sarah, _ := e.signUp(t, "sarah@example.com", "Sarah", models.RoleFreelancer, "")

	project, err := e.svc.CreateProject(sarah.ctx, sarah.user, models.CreateProjectRequest{
		Name:         "Website Redesign",
		ClientEmails: []string{" Dave@X.com ", "dave@x.com", ""},
	})
	require.NoError(t, err)
	assert.NotEmpty(t, project.InviteToken)
	assert.Equal(t, []string{"dave@x.com"}, project.AllowedClients)

	sent := e.mail.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "dave@x.com", sent[0].To)
	assert.Equal(t, "Sarah", sent[0].FreelancerName)
	assert.Equal(t, project.InviteToken, inviteToken(t, sent[0].InviteURL))

	// an anonymous visitor sees the project before signing up
	summary, err := e.svc.ResolveInvite(context.Background(), project.InviteToken, "dave@x.com")
	require.NoError(t, err)
	assert.Equal(t, project.ID, summary.ProjectID)
	assert.Equal(t, "Website Redesign", summary.Name)
	assert.Equal(t, "Sarah", summary.FreelancerName)
	assert.True(t, summary.EmailAllowed)

	dave, res := e.signUp(t, "dave@x.com", "Dave", models.RoleClient, project.InviteToken)
	assert.Equal(t, project.ID, res.ProjectID)

	projects, err := e.svc.ListProjects(dave.ctx, dave.user)
	require.NoError(t, err)
	require.Len(t, projects, 1)
	assert.Equal(t, project.ID, projects[0].ID)
	assert.Empty(t, projects[0].InviteToken, "clients never see the token")

	// second redemption is a no-op
	again, err := e.svc.JoinProject(context.Background(), dave.session.AccessToken, project.InviteToken)
	require.NoError(t, err)
	assert.Equal(t, project.ID, again)

	ids, err := e.db.ListProjectClientIDs(sarah.ctx, project.ID, models.RoleFreelancer)
	require.NoError(t, err)
	assert.Equal(t, []string{dave.user.ID}, ids)

	detail, err := e.svc.GetProject(sarah.ctx, sarah.user, project.ID)
	require.NoError(t, err)
	require.Len(t, detail.Clients, 1)
	assert.Equal(t, "Dave", detail.Clients[0].Name)
}

func TestJoinProject_EmailNotAllowListed(t *testing.T) {
	e := newTestEnv(t)
	_, _, project := sarahAndDave(t, e)

	summary, err := e.svc.ResolveInvite(context.Background(), project.InviteToken, "eve@example.com")
	require.NoError(t, err)
	assert.False(t, summary.EmailAllowed)

	eve, res := e.signUp(t, "eve@example.com", "Eve", models.RoleClient, project.InviteToken)
	assert.Empty(t, res.ProjectID)

	_, err = e.svc.JoinProject(context.Background(), eve.session.AccessToken, project.InviteToken)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthorized))

	projects, err := e.svc.ListProjects(eve.ctx, eve.user)
	require.NoError(t, err)
	assert.Empty(t, projects)

	_, err = e.svc.GetProject(eve.ctx, eve.user, project.ID)
	assert.ErrorIs(t, err, apperrors.ErrNotMember)
}

func TestResolveInvite_UnknownToken(t *testing.T) {
	e := newTestEnv(t)
	_, dave, project := sarahAndDave(t, e)

	for _, token := range []string{"", "not-a-token", project.InviteToken + "x", "%20" + project.InviteToken} {
		_, err := e.svc.ResolveInvite(context.Background(), token, "dave@x.com")
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidInvite), token)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), token)

		_, err = e.svc.JoinProject(context.Background(), dave.session.AccessToken, token)
		assert.True(t, apperrors.IsKind(err, apperrors.KindNotFound), token)
	}
}

func TestJoinProject_RequiresSession(t *testing.T) {
	e := newTestEnv(t)
	_, err := e.svc.JoinProject(context.Background(), "", "whatever")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))

	_, err = e.svc.JoinProject(context.Background(), "garbage", "whatever")
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))
}

func TestSignUp(t *testing.T) {
	e := newTestEnv(t)

	_, err := e.svc.SignUp(context.Background(), models.SignUpRequest{Email: "x@example.com", Password: "secret123", Name: "X", Role: "admin"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))

	sarah, _ := e.signUp(t, "sarah@example.com", "  Sarah ", models.RoleFreelancer, "")
	assert.Equal(t, "Sarah", sarah.user.Name)
	assert.Equal(t, models.RoleFreelancer, sarah.user.Role)

	_, err = e.svc.SignUp(context.Background(), models.SignUpRequest{Email: "sarah@example.com", Password: "secret123", Name: "S", Role: models.RoleClient})
	assert.True(t, apperrors.HasCode(err, apperrors.CodeUserExists))

	signedIn, err := e.svc.SignIn(context.Background(), "sarah@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, sarah.user.ID, signedIn.User.ID)

	me, err := e.svc.CurrentUser(context.Background(), signedIn.Session.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "Sarah", me.Name)

	_, err = e.svc.SignIn(context.Background(), "sarah@example.com", "wrong")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidCredentials))

	// logout never fails
	e.svc.Logout(context.Background(), "garbage")
}

func TestLoadUser_ProfileMissing(t *testing.T) {
	e := newTestEnv(t)
	out, err := e.svc.auth.SignUp(context.Background(), "ghost@example.com", "secret123", nil)
	require.NoError(t, err)

	_, err = e.svc.CurrentUser(context.Background(), out.Session.AccessToken)
	assert.True(t, apperrors.IsKind(err, apperrors.KindUnauthenticated))
	assert.True(t, apperrors.HasCode(err, apperrors.CodeProfileMissing))
}

func TestNormalizeEmails(t *testing.T) {
	assert.Equal(t, []string{"a@x.com", "b@x.com"}, NormalizeEmails([]string{"A@x.com", " a@x.com", "", "b@X.com"}))
	assert.Empty(t, NormalizeEmails(nil))
}

func TestProjectOwnerOnlyOperations(t *testing.T) {
	e := newTestEnv(t)
	sarah, dave, project := sarahAndDave(t, e)

	_, err := e.svc.CreateProject(dave.ctx, dave.user, models.CreateProjectRequest{Name: "Mine"})
	assert.True(t, apperrors.IsKind(err, apperrors.KindForbidden))

	name := "Renamed"
	_, err = e.svc.UpdateProject(dave.ctx, dave.user, project.ID, models.UpdateProjectRequest{Name: &name})
	assert.ErrorIs(t, err, apperrors.ErrFreelancerOnly)

	status := models.ProjectOnHold
	updated, err := e.svc.UpdateProject(sarah.ctx, sarah.user, project.ID, models.UpdateProjectRequest{Name: &name, Status: &status})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", updated.Name)
	assert.Equal(t, models.ProjectOnHold, updated.Status)

	all, err := e.svc.AddAllowedClients(sarah.ctx, sarah.user, project.ID, []string{"DAVE@x.com", "carol@x.com"})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"dave@x.com", "carol@x.com"}, all)
	// only the new address gets an e-mail
	sent := e.mail.Sent()
	assert.Equal(t, "carol@x.com", sent[len(sent)-1].To)

	detail, err := e.svc.GetProject(dave.ctx, dave.user, project.ID)
	require.NoError(t, err)
	assert.Empty(t, detail.InviteToken)
	assert.Empty(t, detail.AllowedClients)

	categories, err := e.svc.ListCategories(dave.ctx, dave.user, project.ID)
	require.NoError(t, err)
	assert.Len(t, categories, len(models.DefaultCategories))
}
