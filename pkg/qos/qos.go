// Package qos describes the delivery guarantees a bus subscription asks for.
package qos

type Ordering uint

const (
	Ordered Ordering = iota
	Unordered
)

func (o Ordering) String() string {
	switch o {
	case Ordered:
		return "ordered"
	case Unordered:
		return "unordered"
	default:
		return "unknown"
	}
}

type Delivery uint

const (
	AtLeastOnce Delivery = iota
	AtMostOnce
)

func (d Delivery) String() string {
	switch d {
	case AtLeastOnce:
		return "at_least_once"
	case AtMostOnce:
		return "at_most_once"
	default:
		return "unknown"
	}
}

// QoS zero value is ordered, at least once delivery.
type QoS struct {
	Ordering Ordering
	Delivery Delivery
}

func (q QoS) String() string {
	return q.Delivery.String() + "/" + q.Ordering.String()
}
