package decompose

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// ManualSection is one top-level section of the manual's table of contents.
type ManualSection struct {
	// Section is the section number.
	Section int `yaml:"section" json:"section"`
	// Title is the section title.
	Title string `yaml:"title" json:"title"`
	// Chapters are the chapter names in reading order.
	Chapters []string `yaml:"chapters" json:"chapters"`
}

// ManualStructure is the ordered table of contents the decomposer anchors
// sub-questions to.
type ManualStructure []ManualSection

// HasSection reports whether the structure contains the given section number.
func (m ManualStructure) HasSection(number int) bool {
	for _, s := range m {
		if s.Section == number {
			return true
		}
	}
	return false
}

// LoadStructure reads a manual structure from a YAML file.
func LoadStructure(path string) (ManualStructure, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("decompose: read structure file: %w", err)
	}
	var structure ManualStructure
	if err := yaml.Unmarshal(data, &structure); err != nil {
		return nil, fmt.Errorf("decompose: parse structure file: %w", err)
	}
	if len(structure) == 0 {
		return nil, fmt.Errorf("decompose: structure file %s contains no sections", path)
	}
	return structure, nil
}

// DefaultStructure returns the table of contents of the JLG telehandler
// service manual the system ships against. Override with a structure file
// for other manuals.
func DefaultStructure() ManualStructure {
	return ManualStructure{
		{Section: 1, Title: "Safety Practices", Chapters: []string{
			"Introduction", "Disclaimer", "Operation & Safety Manual", "Do Not Operate Tags",
			"Safety Information", "Safety Instructions", "Safety Decals",
		}},
		{Section: 2, Title: "General Information and Specifications", Chapters: []string{
			"Replacement Parts and Warranty Information", "Specifications", "Fluid and Lubricant Capacities",
			"Service and Maintenance Schedules", "Lubrication Schedule", "Thread Locking Compound",
			"Torque Charts", "Hydraulic Connection Assembly and Torque Specification",
		}},
		{Section: 3, Title: "Boom", Chapters: []string{
			"Boom System Component Terminology", "Boom System", "Boom Removal/Installation",
			"Boom Assembly Maintenance - 642, 742, 943, 1043",
			"Third Boom Section Removal/Installation Only - 642, 742, 943, 1043",
			"Boom Assembly Maintenance - 1055, 1255",
			"Fourth Boom Section Removal/Installation Only - 1055, 1255",
			"Hose Carrier Assembly - 1055, 1255", "Boom Sections Adjustment - 642, 742, 943, 1043",
			"Boom Sections Adjustment - 1055, 1255", "Boom Extend and Retract Chains", "Boom Wear Pads",
			"Quick Coupler", "Forks", "Emergency Boom Lowering Procedure", "Troubleshooting",
		}},
		{Section: 4, Title: "Cab", Chapters: []string{
			"Operator Cab Component Terminology", "Operator Cab", "Cab Components",
			"Cab Removal", "Cab Installation",
		}},
		{Section: 5, Title: "Axles, Drive Shafts, Wheels and Tires", Chapters: []string{
			"Axle, Drive Shaft and Wheel Component Terminology", "Axle Serial Number",
			"Axle Specifications and Maintenance Information", "Axle Replacement", "Brake Inspection",
			"Steering Angle Adjustment", "Axle Assembly and Drive Shaft Troubleshooting",
			"Drive Shafts", "Wheels and Tires", "Towing a Disabled Machine",
		}},
		{Section: 6, Title: "Transmission", Chapters: []string{
			"Transmission Assembly Component Terminology", "Transmission Serial Number",
			"Specifications and Maintenance Information", "Transmission Replacement",
			"Transmission Fluid/Filter Replacement", "Transmission Fluid Level Check",
			"Transmission Cooler Thermal By-Pass Valve", "Torque Converter Diaphragm",
		}},
		{Section: 7, Title: "Engine", Chapters: []string{
			"Introduction", "Engine Serial Number", "Specifications and Maintenance Information",
			"Engine Cooling System", "Engine Electrical System", "Fuel System", "Engine Exhaust System",
			"Air Cleaner Assembly", "Engine Replacement", "Troubleshooting",
		}},
		{Section: 8, Title: "Hydraulic System", Chapters: []string{
			"Hydraulic Component Terminology", "Safety Information", "Specifications",
			"Hydraulic Pressure Diagnosis", "Hydraulic Circuits", "Hydraulic Schematic",
			"Hydraulic Reservoir", "Implement Pump", "Control Valves",
			"Rear Axle Stabilization (RAS) System", "Precision Gravity Lower System (PGLS)",
			"Boom Ride Control", "Hydraulic Cylinders",
		}},
		{Section: 9, Title: "Electrical System", Chapters: []string{
			"Electrical Component Terminology", "Specifications", "Safety Information",
			"Power Distribution Boards", "Electrical System Schematics", "Electrical Grease Application",
			"Engine Start Circuit", "Battery", "Electrical Master Switch",
			"Window Wiper System (if equipped)", "Solenoids, Sensors and Senders", "Dash Switches",
			"Machine Data", "Analyzer Software Accessibility", "Telematics Gateway",
			"Multifunction Display", "Fault Codes", "Machine Fault Codes", "Engine Diagnostic",
		}},
	}
}
