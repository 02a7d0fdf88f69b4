package internaldefs

import (
	authport "github.com/quvio/authport"
)

// CounterDef ties one engine counter to its published name.
type CounterDef struct {
	ID   authport.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: authport.MetricLoginSuccess, Name: "authport_login_success_total", Help: "Successful login attempts."},
	{ID: authport.MetricLoginFailure, Name: "authport_login_failure_total", Help: "Failed login attempts."},
	{ID: authport.MetricLoginBlocked, Name: "authport_login_blocked_total", Help: "Login attempts refused by lockout or inactivity policy."},
	{ID: authport.MetricTokenIssued, Name: "authport_token_issued_total", Help: "Tokens issued and persisted."},
	{ID: authport.MetricTokenVerifySuccess, Name: "authport_token_verify_success_total", Help: "Successful token verifications."},
	{ID: authport.MetricTokenVerifyFailure, Name: "authport_token_verify_failure_total", Help: "Failed token verifications."},
	{ID: authport.MetricTokenRefreshed, Name: "authport_token_refreshed_total", Help: "Rolling-window token refreshes."},
	{ID: authport.MetricTokenInvalidated, Name: "authport_token_invalidated_total", Help: "Soft token invalidations."},
	{ID: authport.MetricTokenDestroyed, Name: "authport_token_destroyed_total", Help: "Hard token deletions."},
	{ID: authport.MetricIdentityRotated, Name: "authport_identity_rotated_total", Help: "Stable identity rotations (global logouts)."},
	{ID: authport.MetricPasswordChangeSuccess, Name: "authport_password_change_success_total", Help: "Successful password changes."},
	{ID: authport.MetricPasswordChangeFailure, Name: "authport_password_change_failure_total", Help: "Rejected password change attempts."},
	{ID: authport.MetricTOTPSuccess, Name: "authport_totp_success_total", Help: "Successful one-time code verifications."},
	{ID: authport.MetricTOTPFailure, Name: "authport_totp_failure_total", Help: "Failed one-time code verifications."},
	{ID: authport.MetricQRGenerated, Name: "authport_qr_generated_total", Help: "TOTP enrollment QR images rendered."},
	{ID: authport.MetricExternalLinked, Name: "authport_external_account_linked_total", Help: "External oauth2 accounts linked."},
	{ID: authport.MetricBootstrapRuns, Name: "authport_store_bootstrap_total", Help: "Store bootstrap runs that seeded data."},
}
