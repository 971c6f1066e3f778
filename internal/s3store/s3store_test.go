package s3store

import (
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/stretchr/testify/assert"
)

func TestInterpretRestoreHeader(t *testing.T) {
	cases := []struct {
		name   string
		header *string
		want   RestoreStatus
	}{
		{"absent", nil, RestoreNotRestored},
		{"ongoing", aws.String(`ongoing-request="true"`), RestoreInProgress},
		{"done", aws.String(`ongoing-request="false", expiry-date="Fri, 23 Dec 2022 00:00:00 GMT"`), RestoreRestored},
		{"malformed", aws.String("garbage"), RestoreNotRestored},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, interpretRestoreHeader(tc.header))
		})
	}
}
