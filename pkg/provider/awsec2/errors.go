package awsec2

import (
	"fmt"

	"github.com/aws/aws-sdk-go/aws/awserr"

	"github.com/cloudseal/secallow/pkg/provider"
)

// decodeError converts an EC2 client error into the provider taxonomy.
func decodeError(msg string, err error) error {
	if err == nil {
		return nil
	}

	msg = fmt.Sprintf("%s: %s", msg, err.Error())

	if aerr, ok := err.(awserr.Error); ok {
		switch aerr.Code() {
		case
			"AuthFailure",
			"UnauthorizedOperation",
			"OptInRequired",
			"PendingVerification":
			return &provider.Error{Code: provider.AuthFailureError, Msg: msg}
		case
			"InvalidGroup.NotFound",
			"InvalidGroupId.Malformed",
			"InvalidPermission.NotFound":
			return &provider.Error{Code: provider.NotFoundError, Msg: msg}
		case
			"MissingParameter",
			"InvalidParameter",
			"InvalidParameterCombination",
			"InvalidParameterValue",
			"ValidationError":
			return &provider.Error{Code: provider.BadRequestError, Msg: msg}
		}
	}
	return &provider.Error{Code: provider.InternalError, Msg: msg}
}
