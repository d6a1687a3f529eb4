package tls

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/route53"
)

// DNSAPIClient places and removes the _acme-challenge TXT record a
// DNS-01 validation needs (spec.md §4.8 step 2's "external DNS API").
type DNSAPIClient interface {
	PlaceTXT(ctx context.Context, name, value string) error
	RemoveTXT(ctx context.Context, name, value string) error
}

// Route53DNSClient implements DNSAPIClient against AWS Route53,
// authenticated through the AWS SigV4 credential chain rather than the
// hub's own certificate — the idiomatic equivalent for this concrete
// backend (see DESIGN.md's Open Question note).
type Route53DNSClient struct {
	client       *route53.Route53
	hostedZoneID string
	ttl          int64
}

func NewRoute53DNSClient(sess *session.Session, hostedZoneID string) *Route53DNSClient {
	return &Route53DNSClient{
		client:       route53.New(sess),
		hostedZoneID: hostedZoneID,
		ttl:          60,
	}
}

func (c *Route53DNSClient) PlaceTXT(ctx context.Context, name, value string) error {
	return c.change(ctx, route53.ChangeActionUpsert, name, value)
}

func (c *Route53DNSClient) RemoveTXT(ctx context.Context, name, value string) error {
	return c.change(ctx, route53.ChangeActionDelete, name, value)
}

func (c *Route53DNSClient) change(ctx context.Context, action, name, value string) error {
	input := &route53.ChangeResourceRecordSetsInput{
		HostedZoneId: aws.String(c.hostedZoneID),
		ChangeBatch: &route53.ChangeBatch{
			Changes: []*route53.Change{
				{
					Action: aws.String(action),
					ResourceRecordSet: &route53.ResourceRecordSet{
						Name: aws.String(name),
						Type: aws.String(route53.RRTypeTxt),
						TTL:  aws.Int64(c.ttl),
						ResourceRecords: []*route53.ResourceRecord{
							{Value: aws.String(fmt.Sprintf("%q", value))},
						},
					},
				},
			},
		},
	}
	_, err := c.client.ChangeResourceRecordSetsWithContext(ctx, input)
	return err
}
