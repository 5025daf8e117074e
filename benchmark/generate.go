package benchmark

import (
	"fmt"
	"math/rand"

	"github.com/relfeat/engine/column"
	"github.com/relfeat/engine/column/encoding"
	"github.com/relfeat/engine/placeholder"
	"github.com/relfeat/engine/project"
)

// DatasetConfig sizes a synthetic population/peripheral dataset.
type DatasetConfig struct {
	NumCustomers      int
	OrdersPerCustomer int // average; actual count per customer is uniform on [0, 2*average]
	EventsPerCustomer int
	Seed              int64
}

var regions = []string{"na", "emea", "apac", "latam"}
var categories = []string{"books", "toys", "electronics", "home"}

// Generate builds a population table ("customers") and two peripheral
// tables ("orders", a many-to-many child; "events", a
// propositionalization-only child), plus the placeholder.Placeholder
// schema joining them with one level of joins (project/pipeline_test.go's
// buildTestFrames scenario, scaled up).
func Generate(cfg DatasetConfig) (*placeholder.Placeholder, map[string]*project.DataFrame) {
	rng := rand.New(rand.NewSource(cfg.Seed))
	joinKeys := encoding.New()
	regionCodes := encoding.New()
	categoryCodes := encoding.New()

	custFrame := column.NewFrame("customers")
	custIDs := make([]int32, cfg.NumCustomers)
	signupTS := make([]float64, cfg.NumCustomers)
	regionVals := make([]int32, cfg.NumCustomers)
	churned := make([]float64, cfg.NumCustomers)
	for i := 0; i < cfg.NumCustomers; i++ {
		custIDs[i] = joinKeys.Intern(fmt.Sprintf("cust-%d", i))
		signupTS[i] = float64(rng.Intn(365 * 24 * 3600))
		regionVals[i] = regionCodes.Intern(regions[rng.Intn(len(regions))])
		if rng.Float64() < 0.2 {
			churned[i] = 1
		}
	}
	mustAddCode(custFrame, column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, custIDs))
	mustAddFloat(custFrame, column.RoleTimeStamp, column.NewFloat("signup_ts", column.Timestamp, signupTS))
	mustAddCode(custFrame, column.RoleCategorical, column.NewCode("region", column.Categorical, regionVals))
	mustAddFloat(custFrame, column.RoleTarget, column.NewFloat("churned", column.Numerical, churned))

	ordersFrame := column.NewFrame("orders")
	var orderCustIDs []int32
	var orderTS []float64
	var orderAmount []float64
	var orderCategory []int32
	for i := 0; i < cfg.NumCustomers; i++ {
		n := poisson(rng, cfg.OrdersPerCustomer)
		for j := 0; j < n; j++ {
			orderCustIDs = append(orderCustIDs, custIDs[i])
			orderTS = append(orderTS, signupTS[i]+float64(rng.Intn(90*24*3600)))
			orderAmount = append(orderAmount, 5+rng.Float64()*495)
			orderCategory = append(orderCategory, categoryCodes.Intern(categories[rng.Intn(len(categories))]))
		}
	}
	mustAddCode(ordersFrame, column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, orderCustIDs))
	mustAddFloat(ordersFrame, column.RoleTimeStamp, column.NewFloat("order_ts", column.Timestamp, orderTS))
	mustAddFloat(ordersFrame, column.RoleNumerical, column.NewFloat("amount", column.Numerical, orderAmount))
	mustAddCode(ordersFrame, column.RoleCategorical, column.NewCode("category", column.Categorical, orderCategory))

	eventsFrame := column.NewFrame("events")
	var eventCustIDs []int32
	var eventTS []float64
	var eventDuration []float64
	for i := 0; i < cfg.NumCustomers; i++ {
		n := poisson(rng, cfg.EventsPerCustomer)
		for j := 0; j < n; j++ {
			eventCustIDs = append(eventCustIDs, custIDs[i])
			eventTS = append(eventTS, signupTS[i]+float64(rng.Intn(90*24*3600)))
			eventDuration = append(eventDuration, rng.Float64()*600)
		}
	}
	mustAddCode(eventsFrame, column.RoleJoinKey, column.NewCode("customer_id", column.JoinKey, eventCustIDs))
	mustAddFloat(eventsFrame, column.RoleTimeStamp, column.NewFloat("event_ts", column.Timestamp, eventTS))
	mustAddFloat(eventsFrame, column.RoleNumerical, column.NewFloat("duration", column.Numerical, eventDuration))

	schema := placeholder.New("customers", "churned").
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "customer_id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.ManyToMany,
			Child:        placeholder.New("orders"),
		}).
		AddJoin(placeholder.Edge{
			LeftKeyCol:   "customer_id",
			RightKeyCol:  "customer_id",
			Relationship: placeholder.Propositionalization,
			Child:        placeholder.New("events"),
		})

	for _, f := range []*column.Frame{custFrame, ordersFrame, eventsFrame} {
		if err := validateAgainstMetadata(f); err != nil {
			panic(err)
		}
	}

	frames := map[string]*project.DataFrame{
		"customers": project.NewDataFrame(custFrame),
		"orders":    project.NewDataFrame(ordersFrame),
		"events":    project.NewDataFrame(eventsFrame),
	}
	return schema, frames
}

// validateAgainstMetadata checks that f carries every column
// schemaMetadata declares for its table, under the declared role —
// catches a literal-construction typo in Generate before it reaches
// the boosting loop.
func validateAgainstMetadata(f *column.Frame) error {
	meta := metadataFor(f.Name())
	for _, c := range meta.columns {
		role, ok := f.RoleOf(c.name)
		if !ok {
			return fmt.Errorf("table %q: missing column %q", f.Name(), c.name)
		}
		if role != c.role {
			return fmt.Errorf("table %q: column %q has role %s, want %s", f.Name(), c.name, role, c.role)
		}
	}
	return nil
}

// poisson draws a small count with the given mean, uniformly from
// [0, 2*mean] rather than from a true Poisson distribution, trading
// distributional accuracy for a generator with no external dependency
// beyond math/rand.
func poisson(rng *rand.Rand, mean int) int {
	if mean <= 0 {
		return 0
	}
	n := mean + rng.Intn(2*mean+1) - mean
	if n < 0 {
		return 0
	}
	return n
}

func mustAddFloat(f *column.Frame, role column.Role, col *column.Float) {
	if err := f.AddFloat(role, col); err != nil {
		panic(err)
	}
}

func mustAddCode(f *column.Frame, role column.Role, col *column.Code) {
	if err := f.AddCode(role, col); err != nil {
		panic(err)
	}
}
