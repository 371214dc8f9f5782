package listener

import (
	"fmt"

	"github.com/callbackd/callbackd/pkg/config"
	"github.com/callbackd/callbackd/pkg/serde"
)

// newDecoder builds the decoder a topic's configuration asks for.
func newDecoder(topic *config.Topic) (serde.Decoder, error) {
	switch topic.DataSerde {
	case config.SerdeJSON:
		return serde.NewJSON(topic.JSONMapping, topic.StrictMapping)
	case config.SerdeProtobuf:
		return serde.NewProtobuf(topic.ProtobufMapping, false)
	case config.SerdeProtobufWire:
		return serde.NewProtobuf(topic.ProtobufMapping, true)
	default:
		return nil, fmt.Errorf("unknown data serde %q for topic %s", topic.DataSerde, topic.Name)
	}
}
