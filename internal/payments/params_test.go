package payments

import (
	"net/url"
	"testing"
)

func TestParseReturn(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		query string
		want  Return
	}{
		{
			name:  "stripe success",
			query: "success=true&orderId=ord-1",
			want:  Return{Kind: ReturnStripeSuccess, OrderID: "ord-1"},
		},
		{
			name:  "stripe success missing order id",
			query: "success=true",
			want:  Return{Kind: ReturnNone},
		},
		{
			name:  "stripe cancel",
			query: "canceled=true",
			want:  Return{Kind: ReturnStripeCancel},
		},
		{
			name:  "paypal approved",
			query: "paypal_success=true&token=EC-123",
			want:  Return{Kind: ReturnPayPalApproved, ProviderOrderID: "EC-123"},
		},
		{
			name:  "paypal approved missing token",
			query: "paypal_success=true",
			want:  Return{Kind: ReturnNone},
		},
		{
			name:  "paypal cancel",
			query: "paypal_canceled=true",
			want:  Return{Kind: ReturnPayPalCancel},
		},
		{
			name:  "unrelated params",
			query: "utm_source=mail&step=2",
			want:  Return{Kind: ReturnNone},
		},
		{
			name:  "empty",
			query: "",
			want:  Return{Kind: ReturnNone},
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			params, err := url.ParseQuery(tc.query)
			if err != nil {
				t.Fatalf("parse query: %v", err)
			}
			if got := ParseReturn(params); got != tc.want {
				t.Fatalf("got %+v, want %+v", got, tc.want)
			}
		})
	}
}
