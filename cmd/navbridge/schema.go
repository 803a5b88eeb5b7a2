package main

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"navbridge/internal/bridge"
	"navbridge/internal/navmesh"
	"navbridge/internal/net/proto"
)

type nativeSchema struct {
	Navigation bool               `json:"navigation"`
	Args       *jsonschema.Schema `json:"args"`
	Result     *jsonschema.Schema `json:"result"`
}

type schemaDocument struct {
	Title   string                  `json:"title"`
	Call    *jsonschema.Schema      `json:"call"`
	Result  *jsonschema.Schema      `json:"result"`
	Natives map[string]nativeSchema `json:"natives"`
	Mesh    *jsonschema.Schema      `json:"mesh"`
}

func SchemaCmd() *cobra.Command {
	var outPath string
	c := &cobra.Command{
		Use:   "schema",
		Short: "write the JSON schema of the bridge protocol and mesh files",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := json.MarshalIndent(buildSchema(), "", "  ")
			if err != nil {
				return fmt.Errorf("marshal schema: %w", err)
			}
			data = append(data, '\n')
			if outPath == "" {
				_, err := cmd.OutOrStdout().Write(data)
				return err
			}
			return writeFileAtomic(outPath, data)
		},
	}
	c.Flags().StringVar(&outPath, "out", "", "path to write the schema (stdout when empty)")
	return c
}

func buildSchema() schemaDocument {
	reflector := jsonschema.Reflector{
		RequiredFromJSONSchemaTags: true,
		DoNotReference:             true,
	}

	doc := schemaDocument{
		Title:   "navbridge protocol",
		Call:    reflector.Reflect(new(proto.ClientMessage)),
		Result:  reflector.Reflect(new(proto.ResultMessage)),
		Natives: make(map[string]nativeSchema),
		Mesh:    reflector.Reflect(new(navmesh.File)),
	}
	doc.Mesh.Title = "navbridge mesh file"
	doc.Mesh.Description = "Authored as hjson and compiled to .nav with navbridge compile."

	for _, native := range bridge.Natives() {
		doc.Natives[native.Name] = nativeSchema{
			Navigation: native.Nav,
			Args:       reflector.Reflect(native.Args),
			Result:     reflector.Reflect(native.Result),
		}
	}
	return doc
}
