package navigation

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/itslogin/pkg/model"
)

func TestDestinationForRole(t *testing.T) {
	tests := []struct {
		role    model.Role
		want    Destination
		wantErr bool
	}{
		{role: model.RoleTeacher, want: DestinationTeacherView},
		{role: model.RoleStudent, want: DestinationStudentView},
		{role: "admin", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(string(tt.role), func(t *testing.T) {
			got, err := DestinationForRole(tt.role)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrUnknownDestination)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRouter_Navigate(t *testing.T) {
	var shown Params
	r := NewRouter(WithView(DestinationTeacherView,
		ViewFunc(func(ctx context.Context, p Params) error {
			shown = p
			return nil
		})))

	require.NoError(t, r.Navigate(context.Background(),
		DestinationTeacherView, Params{AuthID: "u-42"}))
	assert.Equal(t, "u-42", shown.AuthID)

	err := r.Navigate(context.Background(), DestinationStudentView, Params{})
	assert.ErrorIs(t, err, ErrUnknownDestination)
	assert.Equal(t, []Destination{DestinationTeacherView}, r.History())
}
