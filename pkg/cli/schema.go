package cli

import (
	"github.com/nimburion/querykit/pkg/query"
	"github.com/nimburion/querykit/pkg/store"
	"github.com/spf13/cobra"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// schemaFlags describe the model a command-line request targets.
type schemaFlags struct {
	collection         string
	discriminatorField string
	discriminatorValue string
	idFields           []string
	metricsFile        string
}

func (f *schemaFlags) register(cmd *cobra.Command, needCollection bool) {
	flags := cmd.Flags()
	flags.StringVar(&f.collection, "collection", "", "collection to query")
	flags.StringVar(&f.discriminatorField, "discriminator-field", "_type", "field naming the subtype in shared collections")
	flags.StringVar(&f.discriminatorValue, "discriminator-value", "", "restrict to this subtype")
	flags.StringSliceVar(&f.idFields, "id-field", nil, "extra ObjectID typed field (repeatable)")
	if needCollection {
		_ = cmd.MarkFlagRequired("collection")
	}
}

func (f *schemaFlags) collectionSchema() store.CollectionSchema {
	return store.CollectionSchema{
		IdentifierFields:   f.idFields,
		DiscriminatorField: f.discriminatorField,
		DiscriminatorValue: f.discriminatorValue,
	}
}

// flagSchema is the query.Schema used by offline commands.
type flagSchema struct{ *schemaFlags }

func (s flagSchema) IsSharedCollectionSubtype() bool { return s.discriminatorValue != "" }
func (s flagSchema) DiscriminatorField() string      { return s.discriminatorField }
func (s flagSchema) DiscriminatorValue() string      { return s.discriminatorValue }

func (s flagSchema) PrimaryKeyTypedFields() []string {
	return append([]string{query.IDField}, s.idFields...)
}

func (s flagSchema) CoerceIdentifier(text string) (any, error) {
	return primitive.ObjectIDFromHex(text)
}
