// Package webhook accepts action events pushed by the tracking platform over
// HTTP. Every endpoint verifies an HMAC-SHA256 signature of the raw body
// before the event reaches the bus, and replies with whatever the
// subscribed actions answered.
//
// Endpoints are configured under webhooks:
//
//	webhooks:
//	  listen: "127.0.0.1:8081"
//	  endpoints:
//	    - path: /hooks/tracker
//	      secret: ${TRACKER_WEBHOOK_SECRET}
//	      signature_header: X-Tracker-Signature
//	      max_body_size: 1MB
//	      topics: [action.discover, action.launch]
//
// Signatures are accepted as plain hex or "sha256=<hex>". Failed
// verification is always a bare 403.
package webhook
