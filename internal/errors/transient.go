package errors

import (
	"errors"
	"net"

	"github.com/aws/smithy-go"
)

// transientCodes are DynamoDB, AgentCore and other AWS API error codes that
// indicate throttling or a temporary service-side condition.
var transientCodes = map[string]struct{}{
	"ProvisionedThroughputExceededException": {},
	"RequestLimitExceeded":                   {},
	"ThrottlingException":                    {},
	"Throttling":                             {},
	"TooManyRequestsException":               {},
	"InternalServerError":                    {},
	"InternalServerException":                {},
	"ServiceUnavailable":                     {},
	"ServiceUnavailableException":            {},
	"TransactionInProgressException":         {},
}

// IsTransient reports whether err is a throttling or connectivity failure from
// an AWS service. The error itself is never rewritten: callers that own a retry
// policy use this to decide, the core does not retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		if _, ok := transientCodes[apiErr.ErrorCode()]; ok {
			return true
		}
		return apiErr.ErrorFault() == smithy.FaultServer
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	return false
}

// IsConditionFailed reports whether err is a DynamoDB conditional check
// failure, which the repository uses to detect updates of missing records.
func IsConditionFailed(err error) bool {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode() == "ConditionalCheckFailedException"
	}
	return false
}
