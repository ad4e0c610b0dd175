package checks

import "github.com/samber/lo"

// Builtin lists the shipped checks in registration order.
var Builtin = []Entry{
	{"EC2IMDSv2Check", newIMDSv2Check},
	{"EC2PublicIPCheck", newPublicIPCheck},
	{"EC2AMIPrivateCheck", newAMIPrivateCheck},
	{"EBSSnapshotPrivateCheck", newSnapshotPrivateCheck},
	{"SecurityGroupRemoteAccessCheck", newRemoteAccessCheck},
	{"S3PublicAccessCheck", newS3PublicAccessCheck},
	{"S3EncryptionCheck", newS3EncryptionCheck},
	{"IAMTrustPolicyWildcardCheck", newTrustPolicyWildcardCheck},
	{"IAMPassRoleWildcardResourceCheck", newPassRoleCheck},
	{"IAMRoleCloudFormationPassRoleCheck", newCloudFormationPassRoleCheck},
	{"IAMGluePassRoleCheck", newGluePassRoleCheck},
	{"IAMSSMCommandPolicyCheck", newSSMCommandPolicyCheck},
	{"IAMIdPAssumeRoleCheck", newIdPAssumeRoleCheck},
	{"IAMCrossAccountAssumeRoleCheck", newCrossAccountAssumeRoleCheck},
	{"IAMAccessKeyAgeCheck", newAccessKeyAgeCheck},
	{"IAMRootAccessKeyCheck", newRootAccessKeyCheck},
	{"IAMMFACheck", newMFACheck},
	{"EKSIRSARoleCheck", newIRSARoleCheck},
	{"RDSPublicAccessibilityCheck", newRDSPublicAccessCheck},
	{"RDSSnapshotPublicAccessCheck", newRDSSnapshotPublicCheck},
	{"RDSEncryptionCheck", newRDSEncryptionCheck},
	{"CloudTrailLoggingCheck", newTrailLoggingCheck},
	{"CloudTrailManagementEventsCheck", newManagementEventsCheck},
	{"GuardDutyStatusCheck", newGuardDutyCheck},
	{"ConfigRecorderCheck", newConfigRecorderCheck},
	{"EKSEndpointAccessCheck", newEKSEndpointCheck},
	{"EKSSecretsEncryptionCheck", newEKSSecretsEncryptionCheck},
	{"ECRRepositorySecurityCheck", newECRRepositoryCheck},
	{"ELBHTTPSListenerCheck", newHTTPSListenerCheck},
	{"CloudWatchSecurityAlarmCheck", newSecurityAlarmCheck},
}

// RegisterBuiltins registers every shipped check on r except the disabled
// names.
func RegisterBuiltins(r *Registry, disabled ...string) {
	for _, e := range Builtin {
		if lo.Contains(disabled, e.Name) {
			continue
		}
		r.Register(e.Name, e.Factory)
	}
}
