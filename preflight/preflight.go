// Package preflight is a dry-run permission check run before a
// multi-day pipeline operation starts: simulate whether the operator's
// principal can actually perform the S3 reads and writes the S3-backed
// components (linestream's S3Backend, durablestate's S3Store) will
// need, and fail fast instead of discovering an AccessDenied hours
// into an unattended run.
package preflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/aws/aws-sdk-go-v2/service/iam"
	"github.com/aws/aws-sdk-go-v2/service/iam/types"

	"github.com/oniz93/business-finder/aws"
	"github.com/oniz93/business-finder/errkind"
)

// Resource is one S3 location a component needs access to, plus the
// actions it performs against it (e.g. "s3:GetObject", "s3:PutObject").
type Resource struct {
	Name    string // human-readable label for the report, e.g. "raw corpus bucket"
	ARN     string // e.g. "arn:aws:s3:::bucket/prefix/*"
	Actions []string
}

// Denial is one simulated action/resource pair the principal cannot
// perform.
type Denial struct {
	Resource string
	Action   string
	Decision string
}

// Check runs SimulatePrincipalPolicy for principalArn against every
// resource's actions in a single API call, and returns every denied
// pair. A nil/empty Denial slice with a nil error means every requested
// action is allowed.
func Check(ctx context.Context, client aws.IAMClient, principalArn string, resources []Resource) ([]Denial, error) {
	if len(resources) == 0 {
		return nil, nil
	}

	var actionNames []string
	var resourceArns []string
	seenActions := map[string]bool{}
	seenResources := map[string]bool{}
	for _, r := range resources {
		if !seenResources[r.ARN] {
			resourceArns = append(resourceArns, r.ARN)
			seenResources[r.ARN] = true
		}
		for _, a := range r.Actions {
			if !seenActions[a] {
				actionNames = append(actionNames, a)
				seenActions[a] = true
			}
		}
	}

	out, err := client.SimulatePrincipalPolicy(ctx, &iam.SimulatePrincipalPolicyInput{
		PolicySourceArn: &principalArn,
		ActionNames:     actionNames,
		ResourceArns:    resourceArns,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: simulate principal policy for %s: %v", errkind.ErrMissingResource, principalArn, err)
	}

	wanted := wantedPairs(resources)
	var denials []Denial
	for _, result := range out.EvaluationResults {
		action := stringVal(result.EvalActionName)
		resourceArn := stringVal(result.EvalResourceName)
		if !wanted[pairKey(resourceArn, action)] {
			continue // simulator can return pairs beyond what we asked about
		}
		if result.EvalDecision != types.PolicyEvaluationDecisionTypeAllowed {
			denials = append(denials, Denial{
				Resource: resourceArn,
				Action:   action,
				Decision: string(result.EvalDecision),
			})
		}
	}
	return denials, nil
}

// Report renders denials as a multi-line human-readable summary, used by
// cmd/* binaries' --dry-run preflight output.
func Report(denials []Denial) string {
	if len(denials) == 0 {
		return "preflight: all requested actions are permitted"
	}
	var b strings.Builder
	b.WriteString("preflight: the following actions are not permitted:\n")
	for _, d := range denials {
		fmt.Fprintf(&b, "  %s on %s: %s\n", d.Action, d.Resource, d.Decision)
	}
	return b.String()
}

func wantedPairs(resources []Resource) map[string]bool {
	out := map[string]bool{}
	for _, r := range resources {
		for _, a := range r.Actions {
			out[pairKey(r.ARN, a)] = true
		}
	}
	return out
}

func pairKey(resourceArn, action string) string {
	return resourceArn + "|" + action
}

func stringVal(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
