package executor

import (
	"fmt"

	"github.com/wbrown/janus-odata/odata"
	"github.com/wbrown/janus-odata/odata/planner"
	"github.com/wbrown/janus-odata/odata/query"
)

// Control information annotations added to projected rows
const (
	TypeAnnotation       = "@odata.type"
	CountAnnotation      = "@odata.count"
	NavigationAnnotation = "@odata.navigationLink"
)

// projector shapes rows according to a compiled select/expand tree
type projector struct {
	metadata query.Metadata
	linkSet  *odata.EntitySet // Set addressed by top-level rows, nil below a path
}

func newProjector(plan *planner.Plan) *projector {
	p := &projector{metadata: plan.Metadata}
	if len(plan.Path) == 0 {
		p.linkSet = plan.EntitySet
	}
	return p
}

func (p *projector) rows(env *planner.Env, proj *planner.Projection, rows []odata.Entity, top bool) ([]odata.Entity, error) {
	out := make([]odata.Entity, len(rows))
	for i, row := range rows {
		shaped, err := p.entity(env, proj, row, top)
		if err != nil {
			return nil, err
		}
		out[i] = shaped
	}
	return out, nil
}

func (p *projector) entity(env *planner.Env, proj *planner.Projection, row odata.Entity, top bool) (odata.Entity, error) {
	out := make(odata.Entity)
	if proj.Properties == nil {
		// Every structural and dynamic property; navigations only when expanded
		for k, v := range row {
			switch v.(type) {
			case odata.Entity, []odata.Entity:
				continue
			}
			if proj.Type != nil {
				if _, isNav := proj.Type.Navigation(k); isNav {
					continue
				}
			}
			out[k] = v
		}
	} else {
		for _, prop := range proj.Properties {
			out[prop.Name] = row[prop.Name]
		}
	}

	expanded := make(map[string]bool, len(proj.Expands))
	for _, exp := range proj.Expands {
		expanded[exp.Navigation.Name] = true
		if err := p.expand(env, exp, row, out); err != nil {
			return nil, fmt.Errorf("$expand %s: %w", exp.Navigation.Name, err)
		}
	}

	if proj.Type != nil && p.metadata.Level == query.MetadataFull {
		out[TypeAnnotation] = "#" + proj.Type.QualifiedName()
	}
	if top && p.linkSet != nil && p.metadata.NavigationNextLink && proj.Type != nil && proj.Type.Key != nil {
		key := odata.FormatLiteral(row[proj.Type.Key.Name])
		for _, nav := range proj.Type.Navigations {
			if nav.Collection && !expanded[nav.Name] {
				out[nav.Name+NavigationAnnotation] = fmt.Sprintf("%s(%s)/%s", p.linkSet.Name, key, nav.Name)
			}
		}
	}
	return out, nil
}

func (p *projector) expand(env *planner.Env, exp planner.ExpandStep, row odata.Entity, out odata.Entity) error {
	name := exp.Navigation.Name
	if !exp.Navigation.Collection {
		related, _ := row[name].(odata.Entity)
		if related == nil {
			out[name] = nil
			return nil
		}
		shaped, err := p.entity(env, exp.Projection, related, false)
		if err != nil {
			return err
		}
		out[name] = shaped
		return nil
	}

	items, _ := row[name].([]odata.Entity)
	var err error
	if exp.Filter != nil {
		if items, err = filterRows(env, exp.Filter, items); err != nil {
			return err
		}
	}
	if exp.Count {
		out[name+CountAnnotation] = int64(len(items))
	}
	if len(exp.OrderBy) > 0 {
		if items, err = sortRows(env, exp.OrderBy, items); err != nil {
			return err
		}
	}
	if items, err = page(env, exp.Skip, exp.Top, items); err != nil {
		return err
	}
	shaped, err := p.rows(env, exp.Projection, items, false)
	if err != nil {
		return err
	}
	out[name] = shaped
	return nil
}
