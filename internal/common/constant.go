package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// access token on inbound and outbound requests.
const AccessTokenHeaderName = "access_token"

// Directory attribute names read and written by the engine.
const (
	AttrRecordName     = "RecordName"
	AttrGeneratedUID   = "GeneratedUID"
	AttrAuthority      = "AuthenticationAuthority"
	AttrPolicyOptions  = "PasswordPolicyOptions"
	AttrGroupMembers   = "GroupMembership"
	RecordTypeUsers    = "users"
	RecordTypeGroups   = "groups"
	DefaultAdminGroup  = "admin"
	DefaultServiceName = "credengine.v1.CredentialService"
)
